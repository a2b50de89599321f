package sync

import (
	"context"

	xsync "golang.org/x/sync/semaphore"

	"github.com/johanjanssens/taskloop/loop"
)

// Semaphore is a bounded-concurrency gate: at most n outstanding Acquires
// may be held at once. It wraps golang.org/x/sync/semaphore.Weighted,
// exposing Acquire as a closable-handle-style await (component C1) so a
// blocked Acquire can be cancelled exactly like any other suspension point.
type Semaphore struct {
	w *xsync.Weighted
}

// NewSemaphore returns a Semaphore allowing n concurrent holders.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{w: xsync.NewWeighted(n)}
}

type semaphoreHandle struct {
	cancel context.CancelFunc
}

func (h *semaphoreHandle) Close(onClosed func()) {
	h.cancel()
	if onClosed != nil {
		onClosed()
	}
}

// Acquire suspends the calling Task until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	_, err := loop.AwaitCallback(func(resume loop.ResumeFunc) (loop.Closable, error) {
		cctx, cancel := context.WithCancel(ctx)
		go func() {
			resume(nil, s.w.Acquire(cctx, 1))
		}()
		return &semaphoreHandle{cancel: cancel}, nil
	})
	return err
}

// Release frees one slot, waking a blocked Acquire if any is waiting.
func (s *Semaphore) Release() {
	s.w.Release(1)
}
