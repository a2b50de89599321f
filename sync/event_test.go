package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/johanjanssens/taskloop/loop"
)

func newEventTestHost(t *testing.T) *loop.Host {
	t.Helper()
	adapter := loop.NewInlineHost(time.Millisecond)
	t.Cleanup(adapter.Close)
	return loop.NewHost(adapter)
}

func TestEvent_SetWakesPendingWaiter(t *testing.T) {
	h := newEventTestHost(t)
	e := NewEvent()

	task := loop.Run(h, "waiter", func(_ *loop.Task, _ ...any) (any, error) {
		return nil, e.Wait(context.Background())
	})

	go func() {
		time.Sleep(2 * time.Millisecond)
		e.Set()
	}()

	_, err := task.Wait(context.Background())
	assert.NoError(t, err)
	assert.True(t, e.IsSet())
}

func TestEvent_AlreadySetReturnsImmediately(t *testing.T) {
	h := newEventTestHost(t)
	e := NewEvent()
	e.Set()

	task := loop.Run(h, "waiter", func(_ *loop.Task, _ ...any) (any, error) {
		return nil, e.Wait(context.Background())
	})

	_, err := task.Wait(context.Background())
	assert.NoError(t, err)
}

func TestEvent_ContextCancelSurfacesError(t *testing.T) {
	h := newEventTestHost(t)
	e := NewEvent()

	task := loop.Run(h, "waiter", func(_ *loop.Task, _ ...any) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		return nil, e.Wait(ctx)
	})

	_, err := task.Wait(context.Background())
	assert.Error(t, err)
	assert.False(t, e.IsSet())
}
