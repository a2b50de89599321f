package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Run starts a new Task running fn (component C7's run(name?, fn, args...)).
// Called from outside any Task's fiber it becomes a root, scheduled on h.
// Called from inside a Task's fiber, the new Task becomes a child of the
// caller and h is ignored in favor of the caller's own Host — every Task in
// a tree must share one Host, so pass nil for h at nested call sites.
func Run(h *Host, name string, fn Func, args ...any) *Task {
	parent := currentTask()
	if parent != nil {
		h = parent.host
	}
	t := newTask(h, name, fn, args)
	if parent != nil {
		t.parent = parent
		parent.addChild(t)
	} else {
		h.registerRoot(t)
	}
	h.startTask(t)
	if parent != nil {
		// t's first step may have suspended on its own fiber's goroutine,
		// which leaves the module-scoped current-task slot cleared (or
		// pointed at some other Task reached via further nested Runs) by
		// the time control returns here. The caller's fiber is what runs
		// next, so the slot must read as parent again regardless of what
		// t's first step did to it.
		swapCurrentTask(parent)
	}
	return t
}

// Await suspends the calling Task until other reaches Completed, returning
// its published result. It is runtime misuse to call Await outside a Task's
// own fiber.
func Await(other *Task) (any, error) {
	t := currentTask()
	if t == nil {
		return nil, fmt.Errorf("loop: Await called outside a task: %w", ErrNotInTask)
	}
	return t.doSuspend(func(resume ResumeFunc) error {
		t.setCurrentAwaitTask(other)
		other.addNotifier(func(res Result) {
			resume(res.Value, res.Err)
		})
		return nil
	})
}

// AwaitCallback suspends the calling Task on a single callback-style
// builder — the Go collapse of the source material's await(fn) and
// await(argc, fn, args…) shapes, which differ only in how extra arguments
// are bound; here they're simply closed over in cb. If cb returns a
// Closable, the runtime takes ownership of it for the suspension's
// duration, per the Closable handle protocol (component C1).
func AwaitCallback(cb CallbackFunc) (any, error) {
	t := currentTask()
	if t == nil {
		return nil, fmt.Errorf("loop: Await called outside a task: %w", ErrNotInTask)
	}
	return t.doSuspend(func(resume ResumeFunc) error {
		closable, err := cb(func(value any, cerr error) {
			resume(value, cerr)
		})
		if err != nil {
			return err
		}
		if closable != nil {
			t.setCurrentAwaitClosable(closable)
		}
		return nil
	})
}

// AwaitNextTick suspends the calling Task until the host loop's next
// iteration. It has no Closable and cannot fail on its own; it exists for
// higher-level helpers that need to yield a turn to the host without
// awaiting any particular Task or external handle.
func AwaitNextTick() (any, error) {
	t := currentTask()
	if t == nil {
		return nil, fmt.Errorf("loop: Await called outside a task: %w", ErrNotInTask)
	}
	return t.doSuspend(func(resume ResumeFunc) error {
		t.host.loopAdapter.ScheduleOnNextTick(func() {
			resume(nil, nil)
		})
		return nil
	})
}

// Wrap adapts a callback-style function into a CallbackFunc suitable for
// AwaitCallback. In Go this is the identity function — every CallbackFunc is
// already shaped this way — but it exists so call sites built against
// higher-level helpers read the same as the source material's wrap(argc,
// fn).
func Wrap(cb CallbackFunc) CallbackFunc { return cb }

// IsClosing reports whether the calling Task has been asked to close.
// Outside any Task it reports false.
func IsClosing() bool {
	t := currentTask()
	if t == nil {
		return false
	}
	return t.IsClosing()
}

// Wait blocks the calling goroutine (NOT a Task's fiber — this is for
// embedding code outside the scheduler entirely) until t completes or ctx is
// done, returning t's published result. A context deadline or cancellation
// surfaces as ErrTimeout/ctx.Err() respectively; it does not close t.
func (t *Task) Wait(ctx context.Context) (any, error) {
	ok, value, err := t.PWait(ctx)
	if !ok {
		if err == nil {
			err = ErrTimeout
		}
		return nil, err
	}
	return value, err
}

// PWait is Wait's "protected" form: it reports completion via its bool
// return. When the bool is true, err is the Task's own published error;
// when it is false, err is ErrTimeout for a passed deadline or ctx.Err()
// for a cancellation. Grounded on the teacher's WithTimeout
// wrapper's pattern of separating "didn't finish in time" from "finished
// with an error".
func (t *Task) PWait(ctx context.Context) (bool, any, error) {
	if t.Completed() {
		t.mu.Lock()
		res := t.result
		t.mu.Unlock()
		return true, res.Value, res.Err
	}

	done := ctx.Done()
	ok := t.host.loopAdapter.BlockUntil(done, t.Completed)
	if !ok {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, nil, ErrTimeout
		}
		return false, nil, ctx.Err()
	}

	t.mu.Lock()
	res := t.result
	t.mu.Unlock()
	return true, res.Value, res.Err
}

// Traceback renders t and then the chain of Tasks it is awaiting by way of
// Await(task), one line each with name, creation site and status — msg, if
// non-empty, is printed as a header line. It is
// a debugging aid, not load-bearing runtime state.
func (t *Task) Traceback(msg string) string {
	var sb strings.Builder
	if msg != "" {
		sb.WriteString(msg)
		sb.WriteByte('\n')
	}
	for cur := t; cur != nil; {
		fmt.Fprintf(&sb, "  %s (%s) [%s]\n", cur.name, cur.site, cur.Status())
		cur.mu.Lock()
		next := cur.currentAwaitTask
		cur.mu.Unlock()
		cur = next
	}
	return sb.String()
}
