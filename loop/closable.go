package loop

// Closable is an externally-owned resource the runtime may cancel. A
// callback-style await whose builder returns a non-nil Closable hands the
// runtime exclusive ownership of it for the window between installation as
// the Task's current await and its resume: during that window only the
// runtime calls Close on it.
type Closable interface {
	// Close requests cancellation of the resource. onClosed, if non-nil, is
	// invoked once the resource has actually finished closing. Close must be
	// safe to call even if the resource is already closing.
	Close(onClosed func())
}

// closingChecker is implemented by Closables that can report whether a
// Close is already in flight. Missing it is treated as always-false, per
// the external-API contract: the runtime must never double-close a handle.
type closingChecker interface {
	IsClosing() bool
}

func isAlreadyClosing(c Closable) bool {
	if cc, ok := c.(closingChecker); ok {
		return cc.IsClosing()
	}
	return false
}

// ResumeFunc is the continuation a suspension builder receives. Calling it
// resumes the suspended Task with either a value or an error. Only the
// first invocation has any effect — a callback-style API that fires its
// continuation more than once must not corrupt the runtime.
type ResumeFunc func(value any, err error)

// BuilderFunc arranges for a Task to eventually be resumed, optionally
// returning a Closable the runtime may cancel while the Task is suspended
// on it. A builder that returns an error fails the Task with that error,
// exactly like a user error returned from the Task body; a builder that
// panics fails the Task with an ErrMisuse error instead.
type BuilderFunc func(resume ResumeFunc) (Closable, error)

// CallbackFunc adapts an external callback-style API (one that takes a
// continuation and invokes it exactly once) into something Await accepts.
// This is the Go realization of the "await(argc, fn, args…)" calling shape:
// bind argc/fn/args by closing over them in the CallbackFunc literal.
type CallbackFunc BuilderFunc
