package loop

import (
	"log/slog"
	"sync"
)

// HostLoop is the embedding host's contract with the runtime (component
// C6). The runtime never blocks the OS thread on its own; it asks the host
// to either defer work to the next loop iteration or drive the loop until
// a predicate holds.
type HostLoop interface {
	// ScheduleOnNextTick defers fn to the next iteration of the host loop.
	ScheduleOnNextTick(fn func())
	// BlockUntil pumps the host loop until cond reports true or until the
	// done channel is closed (signalling the deadline/cancellation the
	// caller is honoring). It returns false if it gave up without cond
	// becoming true.
	BlockUntil(done <-chan struct{}, cond func() bool) bool
}

// Host is the scheduler: it owns the HostLoop adapter and drives every
// Task registered against it through resume/await cycles (component C4).
type Host struct {
	loopAdapter HostLoop
	logger      *slog.Logger

	mu     sync.Mutex
	active *driveLoop
	roots  []*Task // live root (un-parented, non-detached-into-void) tasks, for Stats/Dump

	wakeMu sync.Mutex
	wake   chan struct{}
}

type driveLoop struct {
	queue []work
}

type work struct {
	t  *Task
	in resumeMsg
}

// NewHost builds a scheduler over the given host-loop adapter.
func NewHost(adapter HostLoop, opts ...Option) *Host {
	h := &Host{
		loopAdapter: adapter,
		wake:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = discardLogger()
	}
	return h
}

// startTask performs a Task's very first step. Per spec this is always
// synchronous and may run the Task to completion before returning — even
// when called from deep inside another Task's body — so it bypasses the
// trampoline's reentrancy guard and steps directly. Any further
// synchronous resumes it triggers are still trampolined normally, because
// resume funcs always re-enter through driveTask, not through here.
func (h *Host) startTask(t *Task) {
	h.logger.Debug("task starting", "task", t.name, "id", t.id.String())
	h.stepOnce(t, resumeMsg{})
}

// driveTask resumes an already-suspended Task. If it is invoked while an
// outer driveTask call on this Host is still unwinding (i.e. a builder
// synchronously invoked its resume callback), the work is appended to that
// call's queue instead of recursing — this is the trampoline that bounds
// stack growth across long chains of synchronously-resolving awaits.
func (h *Host) driveTask(t *Task, in resumeMsg) {
	h.mu.Lock()
	if h.active != nil {
		h.active.queue = append(h.active.queue, work{t, in})
		h.mu.Unlock()
		return
	}
	dl := &driveLoop{queue: []work{{t, in}}}
	h.active = dl
	h.mu.Unlock()

	for {
		h.mu.Lock()
		if len(dl.queue) == 0 {
			h.active = nil
			h.mu.Unlock()
			h.broadcastWake()
			return
		}
		w := dl.queue[0]
		dl.queue = dl.queue[1:]
		h.mu.Unlock()

		h.stepOnce(w.t, w.in)
	}
}

// deliverResume is how a ResumeFunc hands a value back to the scheduler.
func (h *Host) deliverResume(t *Task, in resumeMsg) {
	h.driveTask(t, in)
}

// stepOnce performs exactly one resume/yield cycle for t (component C4).
func (h *Host) stepOnce(t *Task, in resumeMsg) {
	if !t.startedOnce() {
		go t.runFiber()
	} else {
		t.resumeCh <- in
	}

	msg := <-t.fiberCh

	switch msg.kind {
	case fiberDone:
		h.finishTask(t, Result{Value: msg.value})
	case fiberError:
		h.finishTask(t, Result{Err: msg.err})
	case fiberMisuse:
		h.finishTask(t, Result{Err: msg.err})
	case fiberSuspend:
		h.handleSuspend(t, msg.begin)
	}
}

// handleSuspend runs a suspension's begin callback under a protected-call
// boundary (component C5's builder-failure case): a begin that returns an
// error fails the Task with that error exactly as a returned error from the
// Task body would; a begin that panics outright is runtime misuse.
func (h *Host) handleSuspend(t *Task, begin func(resume ResumeFunc) error) {
	resume, _ := t.nextResumeFunc()
	t.mu.Lock()
	t.currentResume = resume
	t.mu.Unlock()

	var beginErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				beginErr = &misuseError{detail: "suspension builder panicked"}
			}
		}()
		beginErr = begin(resume)
	}()

	if beginErr != nil {
		h.finishTask(t, Result{Err: beginErr})
		return
	}
	h.broadcastWake()
}

// finishTask is entered once a Task's fiber has produced its terminal
// outcome (return, error, or misuse). It is not yet the published result:
// per the parent-waits-for-children rule (component C5), every child must
// first reach Completed. That wait is expressed as notifier continuations,
// never as a blocking receive, because the goroutine running finishTask
// may be this Host's only active driver and must stay free to step the
// children it is waiting on.
func (h *Host) finishTask(t *Task, res Result) {
	t.mu.Lock()
	if t.completing || t.hasResult {
		t.mu.Unlock()
		return
	}
	t.completing = true
	closing := t.closing
	var pending *ChildError
	if len(t.pendingChildErrs) > 0 {
		pending = t.pendingChildErrs[0]
		t.pendingChildErrs = t.pendingChildErrs[1:]
		t.markChildErrConsumedLocked(pending.Child)
	}
	children := append([]*Task(nil), t.children...)
	t.mu.Unlock()

	switch {
	case res.Err == nil && closing:
		res = Result{Err: ErrClosed}
	case res.Err == nil && pending != nil:
		res = Result{Err: pending}
	}

	if res.Err != nil {
		for _, c := range children {
			c.Close(nil)
		}
		h.whenAllDone(children, func() {
			t.clearChildren(children)
			h.publish(t, res)
		})
		return
	}

	h.whenAllDoneCollecting(t, children, func(firstErr *ChildError) {
		t.clearChildren(children)
		if firstErr != nil {
			h.publish(t, Result{Err: firstErr})
			return
		}
		h.publish(t, res)
	})
}

// publish assigns the Task's terminal result, notifies the propagation
// engine and every registered notifier, and retires the Task from this
// Host's root bookkeeping if applicable.
func (h *Host) publish(t *Task, res Result) {
	t.mu.Lock()
	t.hasResult = true
	t.result = res
	t.status = StatusCompleted
	notifiers := t.notifiers
	t.notifiers = nil
	parent := t.parent
	detached := t.detached
	t.mu.Unlock()

	if parent != nil && !detached {
		parent.onChildCompleted(t, res)
	}
	h.unregisterRoot(t)

	for _, n := range notifiers {
		n.fn(res)
	}
	h.broadcastWake()
	h.logger.Debug("task completed", "task", t.name, "id", t.id.String(), "err", res.Err)
}

func (t *Task) startedOnce() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.started
	t.started = true
	return was
}

func (h *Host) broadcastWake() {
	h.wakeMu.Lock()
	close(h.wake)
	h.wake = make(chan struct{})
	h.wakeMu.Unlock()
}

func (h *Host) wakeChan() <-chan struct{} {
	h.wakeMu.Lock()
	defer h.wakeMu.Unlock()
	return h.wake
}

func (h *Host) registerRoot(t *Task) {
	h.mu.Lock()
	h.roots = append(h.roots, t)
	h.mu.Unlock()
}

func (h *Host) unregisterRoot(t *Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.roots {
		if r == t {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// Stats aggregates the live status distribution across every root Task
// this Host has ever scheduled and not yet pruned by completion.
type Stats struct {
	Running   int
	Awaiting  int
	Completed int
	Total     int
}

// Stats reports the current status distribution across this Host's root
// Tasks, walking each tree. Grounded on the teacher's Manager.Stats, which
// scanned a flat status map; here the tree is walked because Tasks are no
// longer flattened into a shared registry.
func (h *Host) Stats() Stats {
	h.mu.Lock()
	roots := append([]*Task(nil), h.roots...)
	h.mu.Unlock()

	var s Stats
	var walk func(*Task)
	walk = func(t *Task) {
		s.Total++
		switch t.Status() {
		case StatusRunning:
			s.Running++
		case StatusAwaiting:
			s.Awaiting++
		case StatusCompleted:
			s.Completed++
		}
		t.mu.Lock()
		children := append([]*Task(nil), t.children...)
		t.mu.Unlock()
		for _, c := range children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return s
}
