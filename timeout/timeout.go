// Package timeout composes loop.Task.Close with a timer — spec.md places
// timeout outside the scheduler core ("a separate helper outside core"),
// and this is that helper, grounded on the teacher's WithTimeout runnable
// wrapper (asynctask/manager.go) generalized from a Runnable decorator to a
// Task that's already running.
package timeout

import (
	"context"
	"time"

	"github.com/johanjanssens/taskloop/loop"
)

// After blocks the calling goroutine until task completes or d elapses,
// whichever comes first. On elapse it closes task and returns
// loop.ErrTimeout; if task finishes in time, its own error (nil or
// otherwise) is returned unchanged. Like the teacher's WithTimeout, it
// does not affect any retry/backoff policy — callers that want both
// compose this with their own retry loop.
func After(task *loop.Task, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	ok, _, err := task.PWait(ctx)
	if ok {
		return err
	}
	task.Close(nil)
	return loop.ErrTimeout
}
