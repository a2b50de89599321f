package loop

import "sync"

// currentSlot is the runtime's module-scoped "currently running Task"
// accessor (§9). Go's tracing GC removes the need for weak references to
// avoid cycles, but the single active-fiber invariant still needs an
// explicit slot: exactly the Task whose fiber goroutine is presently
// executing user code may read it as itself.
var currentSlot struct {
	mu sync.Mutex
	t  *Task
}

func currentTask() *Task {
	currentSlot.mu.Lock()
	defer currentSlot.mu.Unlock()
	return currentSlot.t
}

func swapCurrentTask(t *Task) *Task {
	currentSlot.mu.Lock()
	defer currentSlot.mu.Unlock()
	prev := currentSlot.t
	currentSlot.t = t
	return prev
}

// CurrentTask returns the Task whose fiber is presently executing, or nil
// if called from outside any Task (e.g. the program's main goroutine).
func CurrentTask() *Task {
	return currentTask()
}
