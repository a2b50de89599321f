package loop

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers should compare with errors.Is, never string
// comparison — ChildError and IterError wrap these so the sentinel survives
// framing.
var (
	ErrClosed      = errors.New("closed")
	ErrTimeout     = errors.New("timeout")
	ErrMisuse      = errors.New("coroutine misuse")
	ErrAlreadyDone = errors.New("already completing or completed")
	ErrNotInTask   = errors.New("not running inside a task")
)

// ChildError frames an error surfaced from a non-awaited child Task onto its
// parent's pending-child-error slot or completion result.
type ChildError struct {
	Child *Task
	Err   error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("child error: %s: %v", e.Child.Name(), e.Err)
}

func (e *ChildError) Unwrap() error { return e.Err }

// IterError frames an error surfaced by the iter package while walking a
// fixed set of Tasks in completion order.
type IterError struct {
	Index int
	Err   error
}

func (e *IterError) Error() string {
	return fmt.Sprintf("iter error[index:%d]: %v", e.Index, e.Err)
}

func (e *IterError) Unwrap() error { return e.Err }

// misuseError captures a fiber panic (a Task function that escaped normal
// control flow, or was re-entered from the wrong goroutine) so it can be
// published as the Task's terminal error.
type misuseError struct {
	detail string
}

func (e *misuseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMisuse, e.detail)
}

func (e *misuseError) Unwrap() error { return ErrMisuse }
