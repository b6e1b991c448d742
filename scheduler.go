package cothread

import (
	"time"

	"github.com/joeycumines/go-cothread/internal/fiber"
)

// schedulerLoop is the body of the scheduler's own fiber. It runs until
// Kill marks the runtime as killed, at which point it returns and the
// goroutine backing it exits; every thread still parked in its own fiber
// at that point simply stays parked forever.
func (rt *Runtime) schedulerLoop() {
	for {
		if rt.killed.Load() {
			return
		}
		rt.drainNew()
		rt.updateLoad()

		next := rt.rdyQ.Delmax()
		if next == nil {
			rt.runEventManager(true)
			continue
		}
		t := next.Value
		rt.dispatch(t)
		rt.runEventManager(false)
	}
}

// drainNew moves every thread out of the NEW queue into READY, applying
// favourNew by moving the last thread drained (the most recently spawned
// one, among threads of equal priority) to the head of the whole ready
// queue.
func (rt *Runtime) drainNew() {
	var last *tcb
	for {
		e := rt.newQ.Delmax()
		if e == nil {
			break
		}
		t := e.Value
		t.state = StateReady
		rt.rdyQ.Insert(t.priority, &t.pqElem)
		last = t
	}
	if last != nil && rt.cfg.favourNew {
		rt.rdyQ.Favorite(&last.pqElem)
	}
}

func (rt *Runtime) updateLoad() {
	now := time.Now()
	if rt.lastLoadTick.IsZero() {
		rt.lastLoadTick = now
		return
	}
	if now.Sub(rt.lastLoadTick) < time.Second {
		return
	}
	rt.lastLoadTick = now
	n := float64(rt.rdyQ.Len() + rt.waitQ.Len())
	const alpha = 0.3
	rt.load = alpha*n + (1-alpha)*rt.load
	rt.publishSnapshot()
}

// dispatch switches into t, accounting dispatch time and checking the
// stack guard on return. t must not be nil.
func (rt *Runtime) dispatch(t *tcb) {
	prev := rt.current
	rt.current = t
	t.dispatches++
	start := time.Now()

	fiber.Switch(rt.scheduler.ctx, t.ctx)

	t.accumRunning += time.Since(start)
	t.lastRan = start
	rt.current = prev

	if t.state != StateDead && t.stackGuard != stackGuardMagic {
		rt.log.Err().
			Field("thread_id", t.id).
			Field("thread_name", t.name).
			Log("stack guard corrupted; marking thread dead")
		rt.markDead(t, nil, ErrInvalid)
		return
	}

	switch t.state {
	case StateReady:
		// Age the rest of the ready queue before re-inserting the thread
		// that just ran, so every other ready thread's effective priority
		// grows monotonically: starvation-freedom (spec's "increase(RQ)
		// once per dispatch").
		rt.rdyQ.Increase()
		rt.rdyQ.Insert(t.priority, &t.pqElem)
	case StateWaiting, StateWaitingForWorker:
		rt.waitQ.Insert(t.priority, &t.pqElem)
	case StateSuspended:
		rt.suspQ.Insert(t.priority, &t.pqElem)
	case StateDead:
		// already moved into deadQ by exit()/markDead().
	default:
		panic("cothread: thread left dispatch in an invalid state")
	}
}

// yieldToScheduler is called from within a running thread's fiber to hand
// control back to the scheduler. It must be called with t.state already
// set to the state the thread should resume the world in.
func (rt *Runtime) yieldToScheduler(t *tcb) {
	fiber.Switch(t.ctx, rt.scheduler.ctx)
}

func (rt *Runtime) publishSnapshot() {
	rt.snapshot.Store(&CtrlResult{
		New:       rt.newQ.Len(),
		Ready:     rt.rdyQ.Len(),
		Waiting:   rt.waitQ.Len(),
		Suspended: rt.suspQ.Len(),
		Dead:      rt.deadQ.Len(),
		Load:      rt.load,
	})
}
