// Package loop implements a single-threaded, structured-concurrency Task
// runtime driven by a host loop.
//
// A Task wraps a user function running on its own goroutine (its "fiber").
// Exactly one Task's fiber is ever active at a time; suspension and
// resumption are mediated entirely through doSuspend, the single point
// where a fiber hands control back to the scheduler. Everything else —
// awaiting a sibling Task, awaiting an external callback-style API,
// yielding to the host loop — is built on top of that one primitive.
//
// Tasks form a tree: a Task created while another Task is running becomes
// its child. Errors propagate up the tree (a child's error either raises
// into an awaiting parent or waits in the parent's pending-child-error
// slot); cancellation propagates down (closing a Task closes its current
// await, recursively).
package loop
