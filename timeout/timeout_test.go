package timeout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/johanjanssens/taskloop/loop"
)

func newTimeoutTestHost(t *testing.T) *loop.Host {
	t.Helper()
	adapter := loop.NewInlineHost(time.Millisecond)
	t.Cleanup(adapter.Close)
	return loop.NewHost(adapter)
}

func TestAfter_ReturnsTaskErrorWhenItFinishesInTime(t *testing.T) {
	h := newTimeoutTestHost(t)
	task := loop.Run(h, "fast", func(_ *loop.Task, _ ...any) (any, error) {
		time.Sleep(time.Millisecond)
		return "done", nil
	})

	err := After(task, 50*time.Millisecond)
	assert.NoError(t, err)
}

// eternalHandle is a Closable that only ever resumes its Task when the
// runtime cancels it, standing in for an external resource that blocks
// forever absent an explicit Close.
type eternalHandle struct{}

func (eternalHandle) Close(onClosed func()) {
	if onClosed != nil {
		onClosed()
	}
}

func TestAfter_ClosesAndReturnsErrTimeoutWhenSlow(t *testing.T) {
	h := newTimeoutTestHost(t)
	task := loop.Run(h, "slow", func(_ *loop.Task, _ ...any) (any, error) {
		return loop.AwaitCallback(func(resume loop.ResumeFunc) (loop.Closable, error) {
			return eternalHandle{}, nil
		})
	})

	err := After(task, 5*time.Millisecond)
	assert.ErrorIs(t, err, loop.ErrTimeout)
	assert.True(t, task.Completed())
}
