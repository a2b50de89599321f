// Package awaitall provides the barrier form of await_all (spec.md §1, out
// of the core's scope except for the contract it depends on). Grounded on
// asynctask.Manager.AwaitAll, reimplemented against loop.Await instead of a
// goroutine-per-task fan-out — this runtime has exactly one schedulable
// path at a time, so sequential awaits over a fixed task list are already
// sufficient; no extra concurrency is needed to drain them.
package awaitall

import "github.com/johanjanssens/taskloop/loop"

// Results awaits every task in tasks, in argument order, and returns each
// one's published Result in that same order. The first error encountered
// (by argument order, not completion order) is also returned directly, so
// callers that only care about fail-fast behavior don't need the slice.
// Each Await is an ordinary suspension point, so a child error already
// buffered on the calling Task is returned by the next Await, in that
// slot, in place of the awaited Task's own result.
func Results(tasks ...*loop.Task) ([]loop.Result, error) {
	results := make([]loop.Result, len(tasks))
	var firstErr error
	for i, t := range tasks {
		value, err := loop.Await(t)
		results[i] = loop.Result{Value: value, Err: err}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}
