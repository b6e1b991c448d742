// Package fiber implements cooperative context switching between
// goroutines using rendezvous channels rather than platform-specific
// stack-swapping assembly.
//
// Each Context is a goroutine permanently blocked on its own channel except
// while it holds the baton. Switch hands the baton to the target and then
// blocks the caller until the baton comes back: a save-old/resume-new
// handoff that preserves a strict "only one Context runs at a time"
// invariant, since a Context can only make progress while some other
// Context is blocked inside a Switch call waiting for it.
package fiber

// Context is one cooperatively-scheduled execution context: either a
// dedicated fiber goroutine, or (for the bootstrap thread) the calling
// goroutine itself, wrapped so the scheduler can switch into and out of it
// uniformly.
type Context struct {
	resume chan struct{}
}

// NewBackground creates a Context backed by a fresh goroutine. The
// goroutine blocks immediately and does not run entry until this Context
// is first switched into.
func NewBackground(entry func()) *Context {
	c := &Context{resume: make(chan struct{})}
	go func() {
		<-c.resume
		entry()
	}()
	return c
}

// NewForeground creates a Context that is not backed by its own goroutine.
// It is meant for exactly one caller: the goroutine that constructs it must
// itself call Switch(c, target) to hand off control, and will resume
// running (as if returning from that call) whenever something switches
// back into c. Used for the "main" thread, whose stack is simply whatever
// stack the embedding program's own goroutine is running on.
func NewForeground() *Context {
	return &Context{resume: make(chan struct{})}
}

// Switch transfers control from old to new: it wakes new and then blocks
// the calling goroutine until something switches back into old. old must
// be the Context of whichever goroutine is calling Switch.
func Switch(old, new *Context) {
	new.resume <- struct{}{}
	<-old.resume
}

// Wake resumes c without blocking the caller on a reciprocal switch back.
// Nothing else in this module calls it; the worker pool signals task
// completion through the TASK event instead.
func Wake(c *Context) {
	c.resume <- struct{}{}
}

// Park blocks the calling goroutine until some other goroutine calls Wake
// or Switch into c.
func Park(c *Context) {
	<-c.resume
}
