// Package iter provides a range-over-func view over a fixed set of Tasks,
// delivering each one's result as soon as it completes rather than in
// argument order. It is built only on loop's public Task.Wait — never on
// internal notifier registration — which is what lets an abandoned
// iteration (a break mid-range) simply cancel a context and walk away
// clean, with no lingering callback left registered on any Task.
package iter

import (
	"context"
	goiter "iter"

	"github.com/johanjanssens/taskloop/loop"
)

// Result is a Task's outcome; All yields it alongside the Task's
// argument-list index. Err is wrapped in *loop.IterError (carrying that
// same index) whenever the Task itself failed, per spec.md's
// "iter error[index:N]" framing.
type Result struct {
	Value any
	Err   error
}

// All ranges over tasks' results in completion order: whichever Task
// finishes next is yielded next, regardless of argument order. Tasks that
// have already completed when the range starts are yielded first, in no
// defined order among themselves. Breaking
// out of the range early cancels every Task's background waiter still in
// flight, so nothing is left watching a Task the caller no longer cares
// about.
func All(tasks ...*loop.Task) goiter.Seq2[int, Result] {
	return func(yield func(int, Result) bool) {
		if len(tasks) == 0 {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		type arrival struct {
			index int
			res   Result
		}
		arrivals := make(chan arrival, len(tasks))

		for i, t := range tasks {
			i, t := i, t
			go func() {
				value, err := t.Wait(ctx)
				select {
				case arrivals <- arrival{i, Result{Value: value, Err: err}}:
				case <-ctx.Done():
				}
			}()
		}

		for range tasks {
			a := <-arrivals
			res := a.res
			if res.Err != nil {
				res.Err = &loop.IterError{Index: a.index, Err: res.Err}
			}
			if !yield(a.index, res) {
				return
			}
		}
	}
}
