package cothread

import (
	"time"

	"github.com/joeycumines/go-cothread/internal/pqueue"
	"github.com/joeycumines/go-cothread/internal/ring"
)

// runEventManager runs one classify/poll/post-process pass over every
// thread blocked in WAITING. mustBlock is true when the ready queue is
// empty and the scheduler has nothing else useful to do: in that case the
// pass blocks rather than returning immediately, up to the earliest TIME or
// FUNC deadline, at most 2ms while a TASK event is outstanding, 50ms when
// no thread is waiting and no task is outstanding, and otherwise
// indefinitely.
func (rt *Runtime) runEventManager(mustBlock bool) {
	waiters := rt.waitQ.Elements()

	var fdWatches []selWatch
	var fdOwnerEvents []*event // one event per fdWatches entry, owning the watch
	earliest := time.Time{}
	haveDeadline := false
	pendingCount := 0
	// taskPending tracks whether any pending event's resolution depends on
	// state that changes on a goroutine the poll backend can't observe (a
	// worker finishing a task): those need a short bounded poll rather than
	// an indefinite one, or nothing will ever wake us to recheck them.
	taskPending := false

	markDeadline := func(t time.Time) {
		if !haveDeadline || t.Before(earliest) {
			earliest = t
			haveDeadline = true
		}
	}

	check := func(e *event) {
		switch e.kind {
		case KindFD:
			fdWatches = append(fdWatches, selWatch{fd: e.fd, goal: e.goal})
			fdOwnerEvents = append(fdOwnerEvents, e)
		case KindSelect:
			for _, w := range e.sel {
				fdWatches = append(fdWatches, w)
				fdOwnerEvents = append(fdOwnerEvents, e)
			}
		case KindTime:
			if e.status == StatusPending {
				markDeadline(e.deadline)
			}
		case KindMsg:
			if e.port.pendingCount() > 0 {
				e.status = StatusOccurred
			}
		case KindMutex:
			if e.mu.owner == nil {
				e.status = StatusOccurred
			}
		case KindCond:
			// Only CondSignal/CondBroadcast mark these; nothing to probe here.
		case KindTID:
			if rt.tidGoalMet(e.tid, e.tgoal) {
				e.status = StatusOccurred
			}
		case KindFunc:
			if time.Now().Before(e.nextFire) {
				markDeadline(e.nextFire)
				return
			}
			if e.pred() {
				e.status = StatusOccurred
			} else {
				e.nextFire = time.Now().Add(e.interval)
				markDeadline(e.nextFire)
			}
		case KindTask:
			if e.fini.Load() {
				e.status = StatusOccurred
			} else {
				taskPending = true
			}
		}
	}

	for _, elem := range waiters {
		t := elem.Value
		if t.events == nil {
			continue
		}
		pendingCount++
		ring.Do(t.events, func(re *ring.Elem[*event]) { check(re.Value) })
	}

	timeoutMS := 0
	switch {
	case !mustBlock:
		timeoutMS = 0
	case haveDeadline:
		d := time.Until(earliest)
		if d < 0 {
			d = 0
		}
		timeoutMS = int(d / time.Millisecond)
	case pendingCount == 0 && rt.workers.outstanding() == 0:
		// Nothing pending at all and nothing else can ever become ready:
		// this would deadlock forever. Block briefly so Kill (which closes
		// doneCh) gets noticed rather than spinning.
		timeoutMS = 50
	case taskPending:
		// A TASK event only ever resolves via a worker goroutine the poll
		// backend knows nothing about: block briefly instead of
		// indefinitely so it gets rechecked.
		timeoutMS = 2
	default:
		timeoutMS = -1
	}
	if taskPending && (timeoutMS < 0 || timeoutMS > 2) {
		// A far-off deadline must not delay noticing a finished task either.
		timeoutMS = 2
	}

	revents, err := rt.poller.poll(fdWatches, timeoutMS)
	if err == nil {
		for i, rv := range revents {
			owner := fdOwnerEvents[i]
			got := goalFromRevents(rv)
			switch owner.kind {
			case KindFD:
				if got&owner.goal != 0 {
					owner.status = StatusOccurred
				} else if isErrRevents(rv) {
					owner.status = StatusFailed
				}
			case KindSelect:
				if got&fdWatches[i].goal != 0 && owner.status == StatusPending {
					owner.status = StatusOccurred
				}
			}
		}
	}

	// TIME events whose deadline has passed fire regardless of poll.
	now := time.Now()
	for _, elem := range waiters {
		t := elem.Value
		if t.events == nil {
			continue
		}
		ring.Do(t.events, func(re *ring.Elem[*event]) {
			e := re.Value
			if e.kind == KindTime && e.status == StatusPending && !now.Before(e.deadline) {
				e.status = StatusOccurred
			}
		})
	}

	rt.wakeSatisfiedWaiters(waiters)
}

// wakeSatisfiedWaiters moves every waiting thread whose event ring has at
// least one non-Pending event back to READY.
func (rt *Runtime) wakeSatisfiedWaiters(waiters []*pqueue.Elem[*tcb]) {
	for _, elem := range waiters {
		t := elem.Value
		if t.events == nil {
			continue
		}
		if WalkUntilOccurred(t.events, ring.Next) == nil {
			continue
		}
		rt.waitQ.Delete(&t.pqElem)
		t.state = StateReady
		prio := t.priority + 1
		if prio > PrioMax {
			prio = PrioMax
		}
		rt.rdyQ.Insert(prio, &t.pqElem)
	}
}

func (rt *Runtime) tidGoalMet(target ThreadID, goal TIDGoal) bool {
	t := target
	switch t.state {
	case StateNew:
		return goal&UntilTIDNew != 0
	case StateReady:
		return goal&UntilTIDReady != 0
	case StateWaiting, StateWaitingForWorker:
		return goal&UntilTIDWaiting != 0
	case StateDead:
		return goal&UntilTIDDead != 0
	default:
		return false
	}
}

// markMatchingEvents marks up to limit Pending events satisfying pred as
// Occurred, across every currently waiting thread, and returns how many it
// marked. limit <= 0 means unlimited.
func (rt *Runtime) markMatchingEvents(pred func(e *event) bool, limit int) int {
	marked := 0
	for _, elem := range rt.waitQ.Elements() {
		t := elem.Value
		if t.events == nil {
			continue
		}
		ring.Do(t.events, func(re *ring.Elem[*event]) {
			if limit > 0 && marked >= limit {
				return
			}
			e := re.Value
			if e.status == StatusPending && pred(e) {
				e.status = StatusOccurred
				marked++
			}
		})
		if limit > 0 && marked >= limit {
			break
		}
	}
	return marked
}
