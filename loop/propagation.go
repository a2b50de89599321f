package loop

import "sync"

// whenAllDone invokes onDone once every child has reached Completed —
// synchronously and in-line if they already have. Used on the
// close/error-completion path, where the parent's own result is already
// decided and the children are merely being drained.
func (h *Host) whenAllDone(children []*Task, onDone func()) {
	if len(children) == 0 {
		onDone()
		return
	}
	var mu sync.Mutex
	remaining := len(children)
	for _, c := range children {
		c.addNotifier(func(Result) {
			mu.Lock()
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				onDone()
			}
		})
	}
}

// whenAllDoneCollecting is whenAllDone's counterpart for the natural-return
// path: it still waits for every child, but remembers the first not-yet-
// consumed child error encountered so it can override the parent's Ok
// result, per the parent-waits-for-children rule. A child whose error was
// already delivered to and handled by parent's body (via the
// pendingChildErrs queue drained in doSuspend) is excluded — an error the
// body already observed must never resurface at completion.
func (h *Host) whenAllDoneCollecting(parent *Task, children []*Task, onDone func(*ChildError)) {
	if len(children) == 0 {
		onDone(nil)
		return
	}
	var mu sync.Mutex
	remaining := len(children)
	var firstErr *ChildError
	for _, c := range children {
		child := c
		child.addNotifier(func(r Result) {
			mu.Lock()
			if r.Err != nil && firstErr == nil {
				parent.mu.Lock()
				consumed := parent.consumedChildErr[child]
				parent.mu.Unlock()
				if !consumed {
					firstErr = &ChildError{Child: child, Err: r.Err}
				}
			}
			remaining--
			done := remaining == 0
			cur := firstErr
			mu.Unlock()
			if done {
				onDone(cur)
			}
		})
	}
}

// onChildCompleted implements the edge-triggered half of error propagation:
// a non-awaited child's error is buffered in the parent's pending-child-
// error slot for delivery at the parent's next suspension point. A child
// the parent is actively awaiting needs no extra bookkeeping here — the
// notifier that await(task) itself registered already delivers the error
// as that Await call's return value.
func (p *Task) onChildCompleted(child *Task, res Result) {
	if res.Err == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentAwaitTask == child {
		return
	}
	if p.hasResult || p.completing {
		// The parent is already past the point where pending-child-error
		// would ever be consumed; whenAllDone{,Collecting} already holds
		// its own notifier on this child and will see the error there.
		return
	}
	p.pendingChildErrs = append(p.pendingChildErrs, &ChildError{Child: child, Err: res.Err})
}

func (t *Task) clearChildren(swept []*Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range swept {
		for i, existing := range t.children {
			if existing == c {
				t.children = append(t.children[:i], t.children[i+1:]...)
				break
			}
		}
	}
}

// addChild links c under t. A child created after t has already begun
// completing (e.g. from a sibling's synchronous external complete) arrives
// too late to be covered by t's children-sweep snapshot, so it is closed
// immediately instead of being tracked — structured concurrency never
// leaves a child behind once its parent's dynamic extent has ended.
func (t *Task) addChild(c *Task) {
	t.mu.Lock()
	late := t.completing || t.hasResult
	if !late {
		t.children = append(t.children, c)
	}
	t.mu.Unlock()
	if late {
		c.Close(nil)
	}
}

// Close requests cancellation of the Task (component C5, level-triggered).
// It is idempotent: a second call while the first is still in flight only
// registers onClosed (if any) to fire alongside the first's. If the Task
// is already Completed, onClosed fires synchronously.
func (t *Task) Close(onClosed func()) {
	t.mu.Lock()
	if t.hasResult {
		t.mu.Unlock()
		if onClosed != nil {
			onClosed()
		}
		return
	}
	alreadyClosing := t.closing
	t.closing = true
	awaitTask := t.currentAwaitTask
	awaitClosable := t.currentAwaitClosable
	resume := t.currentResume
	t.mu.Unlock()

	if onClosed != nil {
		t.addNotifier(func(Result) { onClosed() })
	}
	if alreadyClosing {
		return
	}

	switch {
	case awaitTask != nil:
		awaitTask.Close(nil)
	case awaitClosable != nil:
		if !isAlreadyClosing(awaitClosable) && resume != nil {
			awaitClosable.Close(func() {
				resume(nil, ErrClosed)
			})
		}
	default:
		// Either already started with no current-await recorded, or not
		// started yet at all (e.g. closed the instant it was created, by
		// addChild's late-child rule — Run's own first step is still
		// pending). Either way the closing flag is now set; the next time
		// this Task's fiber hits a suspension point, doSuspend observes it
		// before any builder runs.
	}
}

// Complete externally assigns the Task a successful terminal result
// (component C5's completion race). It fails with ErrAlreadyDone if the
// Task has already begun or finished completing.
func (t *Task) Complete(value any) error {
	t.mu.Lock()
	if t.completing || t.hasResult {
		t.mu.Unlock()
		return ErrAlreadyDone
	}
	t.completing = true
	children := append([]*Task(nil), t.children...)
	t.mu.Unlock()

	for _, c := range children {
		c.Close(nil)
	}
	t.host.whenAllDone(children, func() {
		t.clearChildren(children)
		t.host.publish(t, Result{Value: value})
	})
	return nil
}

// Detach severs the parent->child propagation link: the Task becomes a
// root from the propagation engine's perspective (its errors no longer
// buffer onto a parent, and its parent's completion no longer waits for
// it). It returns t for chaining.
func (t *Task) Detach() *Task {
	t.mu.Lock()
	parent := t.parent
	t.detached = true
	t.parent = nil
	t.mu.Unlock()

	if parent != nil {
		parent.clearChildren([]*Task{t})
		t.host.registerRoot(t)
	}
	return t
}
