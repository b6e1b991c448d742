package cothread

import (
	"time"

	"github.com/joeycumines/go-cothread/internal/fiber"
	"github.com/joeycumines/go-cothread/internal/ring"
)

// Spawn creates a new thread running entry(arg) and returns its id. The
// thread starts in state NEW and is picked up by the scheduler's next pass
// through drainNew. attr may be nil to accept every default.
func (rt *Runtime) Spawn(entry func(arg any), arg any, attr *Attr) (ThreadID, error) {
	if entry == nil {
		return nil, ErrInvalid
	}
	var ra resolvedAttr
	if attr != nil {
		if attr.bound != nil {
			return nil, ErrInvalid
		}
		ra = attr.resolve()
	} else {
		ra = NewAttr().resolve()
	}
	if ra.priority < PrioMin || ra.priority > PrioMax {
		return nil, ErrInvalid
	}

	t := newTCB(rt, rt.nextID(), ra)
	rt.threads[t.id] = t

	t.ctx = fiber.NewBackground(func() {
		var result any
		var fatal error
		func() {
			defer func() {
				if r := recover(); r != nil {
					fatal = ErrInvalid
				}
			}()
			entry(arg)
		}()
		rt.exit(t, result, fatal)
	})

	rt.newQ.Insert(t.priority, &t.pqElem)
	rt.publishSnapshot()
	return t, nil
}

// Yield voluntarily relinquishes the remainder of the current thread's
// quantum, returning it to READY at the tail of its priority class.
func (rt *Runtime) Yield() {
	t := rt.current
	t.state = StateReady
	rt.yieldToScheduler(t)
	rt.checkCancelPoint(t)
}

// YieldTo behaves like Yield, but first promotes target to the head of its
// own queue with Favorite. A READY target is then the next thread
// dispatched, unless favourNew favors a thread drained from NEW in the same
// scheduler pass. A NEW target only moves to the front of the NEW queue:
// drainNew then inserts it into READY at its base priority, after the
// calling thread, and with favourNew it is the last thread drained, not
// target, that gets favored. target must currently be NEW or READY; any
// other state returns ErrInvalid and leaves every queue unchanged.
func (rt *Runtime) YieldTo(target ThreadID) error {
	t := target
	switch t.state {
	case StateNew:
		rt.newQ.Favorite(&t.pqElem)
	case StateReady:
		rt.rdyQ.Favorite(&t.pqElem)
	default:
		return ErrInvalid
	}
	rt.Yield()
	return nil
}

// Wait suspends the calling thread until one of the events in the ring
// rooted at events occurs (or fails), or the thread is canceled while
// cancellation is enabled. It returns the event that fired.
func (rt *Runtime) Wait(events *ring.Elem[*event]) (*ring.Elem[*event], error) {
	return rt.waitAs(events, StateWaiting)
}

// waitAs is Wait's implementation, parameterized on the state the thread
// should report while blocked: ordinary waits use StateWaiting, while a
// thread blocked on a worker-pool task reports StateWaitingForWorker so
// Ctrl and the TID-event machinery can tell the two apart.
func (rt *Runtime) waitAs(events *ring.Elem[*event], state State) (*ring.Elem[*event], error) {
	if events == nil {
		return nil, ErrInvalid
	}
	t := rt.current
	markAllPending(events)
	t.events = events
	t.state = state
	rt.yieldToScheduler(t)

	fired := WalkUntilOccurred(events, ring.Next)
	t.events = nil
	rt.checkCancelPoint(t)
	if fired == nil {
		// Canceled out of the wait.
		return nil, Canceled
	}
	if fired.Value.status == StatusFailed {
		return fired, ErrBadFD
	}
	return fired, nil
}

// Nap suspends the calling thread for d, unaffected by priority.
func (rt *Runtime) Nap(d time.Duration) error {
	e := NewTimeEvent(time.Now().Add(d))
	_, err := rt.Wait(e)
	if err == Canceled {
		return err
	}
	return nil
}

// Join blocks until target terminates and returns the value it passed to
// Exit, or Canceled if it was canceled instead. Joining a non-joinable
// thread, a thread twice, or self, returns an error without blocking.
func (rt *Runtime) Join(target ThreadID) (any, error) {
	t := target
	if t == rt.current {
		return nil, ErrDeadlock
	}
	if len(rt.threads) == 1 {
		// Only the calling thread itself is left: no other thread exists
		// to join, joinable or not.
		return nil, ErrDeadlock
	}
	if !t.joinable {
		return nil, ErrNotPermitted
	}
	if t.state != StateDead {
		e := NewTIDEvent(target, UntilTIDDead)
		if _, err := rt.Wait(e); err != nil {
			return nil, err
		}
	}
	t.joinable = false
	delete(rt.threads, t.id)
	rt.deadQ.Delete(&t.pqElem)
	return t.joinArg, t.joinErr
}

// Exit terminates the calling thread with the given result value.
func (rt *Runtime) Exit(result any) {
	rt.exit(rt.current, result, nil)
	panic("cothread: unreachable: exited thread resumed")
}

// exit performs the shared termination sequence for both Exit and a
// thread function returning normally.
func (rt *Runtime) exit(t *tcb, result any, err error) {
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		fn, arg := t.cleanups[i].fn, t.cleanups[i].arg
		t.cleanups[i] = cleanupFrame{}
		fn(arg)
	}
	t.cleanups = nil
	rt.releaseAllMutexes(t)
	rt.runTSDDestructors(t)

	t.joinArg = result
	t.joinErr = err
	t.state = StateDead
	rt.deadQ.Insert(t.priority, &t.pqElem)
	if !t.joinable {
		delete(rt.threads, t.id)
	}
	rt.publishSnapshot()

	if rt.isMain(t) {
		rt.Kill()
	}

	if t == rt.current {
		rt.yieldToScheduler(t)
	}
}

// markDead forcibly terminates t without running its own cleanup sequence
// normally -- used for the stack-guard-corruption fatal path, where the
// thread's own stack state can no longer be trusted to run handlers
// safely, so only mutex release and bookkeeping happen.
func (rt *Runtime) markDead(t *tcb, result any, err error) {
	rt.releaseAllMutexes(t)
	t.joinArg = result
	t.joinErr = err
	t.state = StateDead
	rt.deadQ.Insert(t.priority, &t.pqElem)
	if !t.joinable {
		delete(rt.threads, t.id)
	}
	rt.publishSnapshot()
}

// Cancel requests that target terminate. If target has cancellation
// enabled and either set to async or blocked in Wait, it terminates
// immediately; otherwise it terminates the next time it reaches a
// cancellation point (Yield, Wait, or an explicit CancelPoint call) with
// cancellation enabled.
func (rt *Runtime) Cancel(target ThreadID) error {
	t := target
	if t.state == StateDead {
		return ErrNoSuchThread
	}
	t.cancelReq.Store(true)
	if !t.cancelState.enabled {
		return nil
	}
	if t.cancelState.async {
		rt.deliverCancellation(t)
	} else if t.state == StateWaiting {
		// A thread blocked in Wait is itself a cancellation point.
		rt.deliverCancellation(t)
	}
	return nil
}

// deliverCancellation removes t from whichever scheduler queue currently
// holds it, then runs the shared termination sequence. t must not be
// rt.current (that case is handled by checkCancelPoint instead): exit
// unconditionally re-queues t into deadQ, so t's pqElem must be unlinked
// from its present queue first or that insert panics on an already-queued
// element.
func (rt *Runtime) deliverCancellation(t *tcb) {
	switch t.state {
	case StateNew:
		rt.newQ.Delete(&t.pqElem)
	case StateReady:
		rt.rdyQ.Delete(&t.pqElem)
	case StateWaiting, StateWaitingForWorker:
		rt.waitQ.Delete(&t.pqElem)
		t.events = nil
	case StateSuspended:
		rt.suspQ.Delete(&t.pqElem)
	}
	rt.exit(t, nil, Canceled)
}

// checkCancelPoint terminates the calling thread immediately if a
// cancellation request is outstanding and enabled.
func (rt *Runtime) checkCancelPoint(t *tcb) {
	if t.cancelReq.Load() && t.cancelState.enabled {
		rt.exit(t, nil, Canceled)
	}
}

// CancelPoint is an explicit cancellation point a thread can call at a
// convenient moment in a long-running loop.
func (rt *Runtime) CancelPoint() {
	rt.checkCancelPoint(rt.current)
}

// SetCancelState toggles whether the calling thread can be canceled at
// all, returning the previous value.
func (rt *Runtime) SetCancelState(enabled bool) bool {
	t := rt.current
	old := t.cancelState.enabled
	t.cancelState.enabled = enabled
	return old
}

// SetCancelType toggles whether cancellation of the calling thread is
// delivered immediately (async) or only at cancellation points.
func (rt *Runtime) SetCancelType(async bool) bool {
	t := rt.current
	old := t.cancelState.async
	t.cancelState.async = async
	return old
}

// Suspend removes target from scheduling entirely until Resume is called.
// The scheduler and the calling thread itself cannot be suspended.
func (rt *Runtime) Suspend(target ThreadID) error {
	t := target
	if t == rt.current {
		return ErrNotPermitted
	}
	switch t.state {
	case StateReady:
		rt.rdyQ.Delete(&t.pqElem)
	case StateWaiting, StateWaitingForWorker:
		rt.waitQ.Delete(&t.pqElem)
	case StateNew:
		rt.newQ.Delete(&t.pqElem)
	case StateSuspended:
		return nil
	default:
		return ErrNotPermitted
	}
	t.state = StateSuspended
	rt.suspQ.Insert(t.priority, &t.pqElem)
	return nil
}

// Resume returns a previously suspended thread to READY.
func (rt *Runtime) Resume(target ThreadID) error {
	t := target
	if t.state != StateSuspended {
		return ErrNotPermitted
	}
	rt.suspQ.Delete(&t.pqElem)
	t.state = StateReady
	rt.rdyQ.Insert(t.priority, &t.pqElem)
	return nil
}

// Once runs fn exactly once per flag, the first time any thread calls
// RunOnce with that flag. Subsequent calls with the same flag return
// immediately.
type Once struct {
	done bool
}

func (rt *Runtime) RunOnce(o *Once, fn func()) {
	if o.done {
		return
	}
	o.done = true
	fn()
}

// key_create/key_delete style thread-specific-data support. Keys are
// scoped to the Runtime that created them, not to the process: each
// Runtime owns its own destructor table and slot counter.

type tsdKey struct {
	slot int
}

// KeyCreate allocates a new thread-specific-data key with an optional
// destructor, called on thread exit for any thread whose slot is non-nil.
func (rt *Runtime) KeyCreate(destructor func(any)) (*tsdKey, error) {
	if rt.tsdNextKey >= maxTSDKeys {
		return nil, ErrNoMemory
	}
	k := &tsdKey{slot: rt.tsdNextKey}
	rt.tsdDestructors[k.slot] = destructor
	rt.tsdNextKey++
	return k, nil
}

func (rt *Runtime) SetSpecific(k *tsdKey, value any) {
	rt.current.tsd[k.slot] = value
}

func (rt *Runtime) GetSpecific(k *tsdKey) any {
	return rt.current.tsd[k.slot]
}

func (rt *Runtime) runTSDDestructors(t *tcb) {
	for iter := 0; iter < destructorIterations; iter++ {
		anyRun := false
		for i := range t.tsd {
			if t.tsd[i] == nil {
				continue
			}
			v := t.tsd[i]
			t.tsd[i] = nil
			if rt.tsdDestructors[i] != nil {
				anyRun = true
				rt.tsdDestructors[i](v)
			}
		}
		if !anyRun {
			return
		}
	}
}

// CleanupPush registers fn(arg) to run, in LIFO order, when the calling
// thread exits (whether via Exit, a normal return, or cancellation).
func (rt *Runtime) CleanupPush(fn func(arg any), arg any) {
	t := rt.current
	t.cleanups = append(t.cleanups, cleanupFrame{fn: fn, arg: arg})
}

// CleanupPop removes the most recently pushed cleanup handler, optionally
// executing it first.
func (rt *Runtime) CleanupPop(execute bool) {
	t := rt.current
	n := len(t.cleanups)
	if n == 0 {
		return
	}
	frame := t.cleanups[n-1]
	t.cleanups = t.cleanups[:n-1]
	if execute {
		frame.fn(frame.arg)
	}
}
