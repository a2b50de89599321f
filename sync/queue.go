package sync

import (
	"context"

	"github.com/johanjanssens/taskloop/loop"
)

// Queue is a fixed-capacity FIFO for handing values from ordinary
// goroutines to Tasks. Grounded on ygrebnov-workers's fifoWorkers channel
// plumbing (fifo.go), reinterpreted so Pop suspends a Task through the
// Closable handle protocol instead of blocking a dedicated worker
// goroutine.
type Queue[T any] struct {
	items chan T
}

// NewQueue returns a Queue with room for capacity buffered items (1024 if
// capacity <= 0, mirroring the teacher's default channel sizing).
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// Push enqueues v. It panics if the queue is already at capacity, the same
// saturation behavior fifoWorkers.AddTask documents for a full channel.
func (q *Queue[T]) Push(v T) {
	select {
	case q.items <- v:
	default:
		panic("taskloop/sync: queue is full")
	}
}

type queueHandle struct {
	cancel context.CancelFunc
}

func (h *queueHandle) Close(onClosed func()) {
	h.cancel()
	if onClosed != nil {
		onClosed()
	}
}

// Pop suspends the calling Task until an item is available or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	v, err := loop.AwaitCallback(func(resume loop.ResumeFunc) (loop.Closable, error) {
		cctx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case item := <-q.items:
				resume(item, nil)
			case <-cctx.Done():
				if ctx.Err() != nil {
					resume(nil, ctx.Err())
				}
			}
		}()
		return &queueHandle{cancel: cancel}, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if v == nil {
		var zero T
		return zero, nil
	}
	return v.(T), nil
}
