package loop

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/xid"
)

// ID is the opaque identity of a Task.
type ID struct{ raw xid.ID }

func newID() ID { return ID{raw: xid.New()} }

func (id ID) String() string { return id.raw.String() }

// Status is a Task's externally observable lifecycle stage. There is no
// separate "Normal" (active but nested, i.e. stepping a child) state: such
// a Task reports Running, since it is not suspended.
type Status int

const (
	StatusRunning Status = iota
	StatusAwaiting
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusAwaiting:
		return "awaiting"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Func is the body of a Task. It receives the Task running it (so it can
// call Await/IsClosing/etc. on itself) plus whatever arguments Run was
// given.
type Func func(t *Task, args ...any) (any, error)

// Result is a Task's published terminal outcome: exactly one of Value or
// Err is meaningful, per spec's single-completion invariant.
type Result struct {
	Value any
	Err   error
}

// Task is the central entity of the runtime: a coroutine (realized here as
// a dedicated goroutine) plus its scheduling metadata.
type Task struct {
	id        ID
	name      string
	site      string
	createdAt time.Time

	host *Host
	fn   Func
	args []any

	resumeCh chan resumeMsg
	fiberCh  chan fiberMsg
	started  bool

	mu         sync.Mutex
	status     Status
	result     Result
	hasResult  bool
	completing bool
	closing    bool

	parent   *Task
	children []*Task
	detached bool

	currentAwaitTask     *Task
	currentAwaitClosable Closable
	currentResume        ResumeFunc
	awaitSeq             uint64 // marker: bumped each new suspension, stamped on its resume closure

	// pendingChildErrs buffers non-awaited children's errors in arrival
	// order, drained one per suspension point — a queue rather than a
	// single slot, so a second child's error while a first is still
	// unconsumed is never silently dropped. consumedChildErr remembers
	// which children's errors have already been delivered this way, so the
	// natural-completion sweep (whenAllDoneCollecting) does not re-raise an
	// error the body already observed and handled.
	pendingChildErrs []*ChildError
	consumedChildErr map[*Task]bool

	notifiers   []notifierEntry
	notifierSeq int
}

type notifierEntry struct {
	id int
	fn func(Result)
}

type resumeMsg struct {
	value any
	err   error
}

type fiberMsgKind int

const (
	fiberDone fiberMsgKind = iota
	fiberError
	fiberMisuse
	fiberSuspend
)

type fiberMsg struct {
	kind  fiberMsgKind
	value any
	err   error
	begin func(resume ResumeFunc) error
}

// newTask allocates a Task. It does not start the fiber or link it to a
// parent; callers (Run) do both.
func newTask(h *Host, name string, fn Func, args []any) *Task {
	if name == "" {
		name = "task"
	}
	return &Task{
		id:        newID(),
		name:      name,
		site:      callerSite(3),
		createdAt: time.Now(),
		host:      h,
		fn:        fn,
		args:      args,
		resumeCh:  make(chan resumeMsg),
		fiberCh:   make(chan fiberMsg),
	}
}

func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// ID returns the Task's identity.
func (t *Task) ID() ID { return t.id }

// Name returns the Task's debug name.
func (t *Task) Name() string { return t.name }

// Site returns the Task's creation site ("file:line").
func (t *Task) Site() string { return t.site }

// runFiber is the body of the dedicated goroutine backing a Task. It is
// started exactly once, by the scheduler's first step.
func (t *Task) runFiber() {
	defer func() {
		if r := recover(); r != nil {
			t.fiberCh <- fiberMsg{kind: fiberMisuse, err: &misuseError{detail: fmt.Sprint(r)}}
		}
	}()

	prev := swapCurrentTask(t)
	value, err := t.fn(t, t.args...)
	swapCurrentTask(prev)

	if err != nil {
		t.fiberCh <- fiberMsg{kind: fiberError, err: err}
		return
	}
	t.fiberCh <- fiberMsg{kind: fiberDone, value: value}
}

// doSuspend is the sole yield/resume bridge between a Task's fiber and the
// scheduler (component C2). begin runs on the scheduler side once the fiber
// has handed control back; it is responsible for eventually calling resume.
//
// Level-triggered cancellation and edge-triggered child errors are both
// checked here, before begin ever runs, so every suspension point —
// regardless of what it is suspending on — observes them.
func (t *Task) doSuspend(begin func(resume ResumeFunc) error) (any, error) {
	if currentTask() != t {
		panic(&misuseError{detail: "Await called from outside the task's own fiber"})
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if len(t.pendingChildErrs) > 0 {
		ce := t.pendingChildErrs[0]
		t.pendingChildErrs = t.pendingChildErrs[1:]
		t.markChildErrConsumedLocked(ce.Child)
		t.mu.Unlock()
		return nil, ce
	}
	t.mu.Unlock()

	prev := swapCurrentTask(nil)
	t.fiberCh <- fiberMsg{kind: fiberSuspend, begin: begin}
	msg := <-t.resumeCh
	swapCurrentTask(prev)
	return msg.value, msg.err
}

// nextResumeFunc returns an idempotent ResumeFunc tied to the Task's
// current await generation. Stale invocations (from a superseded await, or
// a misbehaving API calling its continuation twice) are silently ignored —
// only the first call for the current generation is honored.
func (t *Task) nextResumeFunc() (ResumeFunc, uint64) {
	t.mu.Lock()
	t.awaitSeq++
	seq := t.awaitSeq
	t.mu.Unlock()

	var once sync.Once
	return func(value any, err error) {
		once.Do(func() {
			t.mu.Lock()
			match := t.awaitSeq == seq
			t.mu.Unlock()
			if !match {
				return
			}
			t.clearCurrentAwait()
			t.host.deliverResume(t, resumeMsg{value: value, err: err})
		})
	}, seq
}

func (t *Task) setCurrentAwaitTask(child *Task) {
	t.mu.Lock()
	t.currentAwaitTask = child
	t.status = StatusAwaiting
	t.mu.Unlock()
}

func (t *Task) setCurrentAwaitClosable(c Closable) {
	t.mu.Lock()
	t.currentAwaitClosable = c
	t.status = StatusAwaiting
	t.mu.Unlock()
}

// markChildErrConsumedLocked records that child's error has been delivered
// to t's body, so a later completion sweep must not raise it a second
// time. Callers must hold t.mu.
func (t *Task) markChildErrConsumedLocked(child *Task) {
	if t.consumedChildErr == nil {
		t.consumedChildErr = make(map[*Task]bool)
	}
	t.consumedChildErr[child] = true
}

func (t *Task) clearCurrentAwait() {
	t.mu.Lock()
	t.currentAwaitTask = nil
	t.currentAwaitClosable = nil
	if t.status != StatusCompleted {
		t.status = StatusRunning
	}
	t.mu.Unlock()
}

// Status reports the Task's current lifecycle stage.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Completed reports whether the Task has published a terminal result.
func (t *Task) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasResult
}

// IsClosing reports whether Close has been requested on this Task.
func (t *Task) IsClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

// addNotifier registers cb to run once the Task completes, returning a
// token that removeNotifier can later use to deregister it. If the Task is
// already completed, cb fires synchronously and in-line (this is what lets
// awaiting an already-finished Task work from deep inside a trampolined
// chain of synchronous completions) and no token is needed.
func (t *Task) addNotifier(cb func(Result)) int {
	t.mu.Lock()
	if t.hasResult {
		res := t.result
		t.mu.Unlock()
		cb(res)
		return 0
	}
	t.notifierSeq++
	id := t.notifierSeq
	t.notifiers = append(t.notifiers, notifierEntry{id: id, fn: cb})
	t.mu.Unlock()
	return id
}

// removeNotifier deregisters a previously-added notifier by its token.
// Nothing in the module calls it; iter avoids lingering callbacks by
// waiting through Task.Wait instead of registering notifiers.
func (t *Task) removeNotifier(id int) {
	if id == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, n := range t.notifiers {
		if n.id == id {
			t.notifiers = append(t.notifiers[:i], t.notifiers[i+1:]...)
			return
		}
	}
}
