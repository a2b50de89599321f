// Package sync provides higher-level waitable primitives built strictly on
// top of loop's public Task/Await surface — never by reaching into the
// scheduler's internals. They exist to give the domain-stack dependencies a
// concrete home and to keep the core's C7 contract honest: if a one-shot
// flag, a bounded gate, and a FIFO queue can all be built on Run/Await/
// Task.Close alone, that contract is sufficient.
package sync

import (
	"context"
	"sync"

	"github.com/johanjanssens/taskloop/loop"
)

// Event is a one-shot waitable flag: Set fires every pending and future
// Wait exactly once. Grounded on spec.md's "await a callback-style
// function" shape.
type Event struct {
	mu      sync.Mutex
	fired   bool
	waiters []func()
}

// NewEvent returns an unfired Event.
func NewEvent() *Event { return &Event{} }

// Set marks the Event fired, waking every Task currently blocked in Wait
// and every future Wait call. A second Set is a no-op.
func (e *Event) Set() {
	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return
	}
	e.fired = true
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	for _, w := range waiters {
		w()
	}
}

// IsSet reports whether Set has already fired.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}

type eventHandle struct {
	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

func (h *eventHandle) Close(onClosed func()) {
	h.mu.Lock()
	h.closed = true
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if onClosed != nil {
		onClosed()
	}
}

func (h *eventHandle) IsClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Wait suspends the calling Task until Set is called or ctx is done,
// whichever happens first. It is runtime misuse to call it outside a
// Task's fiber, same as loop.AwaitCallback.
func (e *Event) Wait(ctx context.Context) error {
	if e.IsSet() {
		return nil
	}

	_, err := loop.AwaitCallback(func(resume loop.ResumeFunc) (loop.Closable, error) {
		var once sync.Once
		cctx, cancel := context.WithCancel(ctx)
		h := &eventHandle{cancel: cancel}

		e.mu.Lock()
		if e.fired {
			e.mu.Unlock()
			cancel()
			once.Do(func() { resume(nil, nil) })
			return h, nil
		}
		e.waiters = append(e.waiters, func() {
			once.Do(func() { resume(nil, nil) })
		})
		e.mu.Unlock()

		go func() {
			<-cctx.Done()
			if ctx.Err() != nil {
				once.Do(func() { resume(nil, ctx.Err()) })
			}
		}()
		return h, nil
	})
	return err
}
