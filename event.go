package cothread

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-cothread/internal/ring"
)

// Kind identifies what an event is waiting on.
type Kind int

const (
	KindFD Kind = iota
	KindSelect
	KindTime
	KindMsg
	KindMutex
	KindCond
	KindTID
	KindFunc
	KindTask
)

// Status is an event's tri-state lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusOccurred
	StatusFailed
)

// FDGoal is a bitmask of readiness conditions an FD/SELECT event waits for.
type FDGoal uint8

const (
	UntilFDReadable FDGoal = 1 << iota
	UntilFDWriteable
	UntilFDException
)

// TIDGoal is a bitmask of the lifecycle transitions a TID event watches
// for.
type TIDGoal uint8

const (
	UntilTIDNew TIDGoal = 1 << iota
	UntilTIDReady
	UntilTIDWaiting
	UntilTIDDead
)

// Lifetime names the ways an event's storage can be owned. No constructor
// or other function in this package takes a Lifetime: every NewXxxEvent
// allocates a fresh event, which the garbage collector reclaims, and there
// is no per-thread slab of reusable events.
type Lifetime int

const (
	// Dynamic: a fresh event allocated by its constructor.
	Dynamic Lifetime = iota
	// Reuse: caller-owned event storage re-armed in place.
	Reuse
	// Chain: a new event linked into an existing ring.
	Chain
	// Static: an event kept in a per-thread slab keyed by a call-site
	// token.
	Static
)

// selWatch describes one fd within a SELECT event's aggregated set.
type selWatch struct {
	fd   int
	goal FDGoal
}

// event is a single node in an event ring. Construction happens via the
// NewXxxEvent helpers below, which wrap this in a *ring.Elem[*event] sized
// ring of one, ready for Concat.
type event struct {
	kind   Kind
	status Status

	// FD / first entry of SELECT
	fd   int
	goal FDGoal

	// SELECT
	sel []selWatch

	// TIME
	deadline time.Time

	// MSG
	port *Port

	// MUTEX
	mu *mutex

	// COND
	cond *Cond

	// TID
	tid  ThreadID
	tgoal TIDGoal

	// FUNC
	pred     func() bool
	interval time.Duration
	nextFire time.Time

	// TASK: fini is set from the worker goroutine that ran the task, so it
	// is an atomic rather than a plain bool like every other field here.
	fini atomic.Bool

	ring *ring.Elem[*event]
}

func newEventRing(e *event) *ring.Elem[*event] {
	r := ring.New(e)
	e.ring = r
	return r
}

// NewFDEvent waits for an OS file descriptor to become ready. fd must be
// non-negative.
func NewFDEvent(fd int, goal FDGoal) (*ring.Elem[*event], error) {
	if fd < 0 {
		return nil, ErrInvalid
	}
	e := &event{kind: KindFD, status: StatusPending, fd: fd, goal: goal}
	return newEventRing(e), nil
}

// NewSelectEvent aggregates a caller-supplied set of (fd, goal) pairs into
// one event, as a direct analog of the classic select() fd-sets.
func NewSelectEvent(watches ...selWatch) (*ring.Elem[*event], error) {
	for _, w := range watches {
		if w.fd < 0 {
			return nil, ErrInvalid
		}
	}
	e := &event{kind: KindSelect, status: StatusPending, sel: watches}
	return newEventRing(e), nil
}

// NewTimeEvent fires once the absolute deadline has passed.
func NewTimeEvent(deadline time.Time) *ring.Elem[*event] {
	e := &event{kind: KindTime, status: StatusPending, deadline: deadline}
	return newEventRing(e)
}

// NewMsgEvent fires once port has at least one pending message.
func NewMsgEvent(p *Port) (*ring.Elem[*event], error) {
	if p == nil {
		return nil, ErrInvalid
	}
	e := &event{kind: KindMsg, status: StatusPending, port: p}
	return newEventRing(e), nil
}

// NewMutexEvent fires once m becomes unlocked.
func NewMutexEvent(m *mutex) (*ring.Elem[*event], error) {
	if m == nil || !m.initialized {
		return nil, ErrInvalid
	}
	e := &event{kind: KindMutex, status: StatusPending, mu: m}
	return newEventRing(e), nil
}

// NewCondEvent fires once c is signaled.
func NewCondEvent(c *Cond) (*ring.Elem[*event], error) {
	if c == nil {
		return nil, ErrInvalid
	}
	e := &event{kind: KindCond, status: StatusPending, cond: c}
	return newEventRing(e), nil
}

// NewTIDEvent fires once target's state matches goal (or goal is
// UntilTIDDead and target has already been reaped/forgotten).
func NewTIDEvent(target ThreadID, goal TIDGoal) *ring.Elem[*event] {
	e := &event{kind: KindTID, status: StatusPending, tid: target, tgoal: goal}
	return newEventRing(e)
}

// NewFuncEvent fires whenever pred returns true; if it doesn't, it is
// re-polled no sooner than interval from now.
func NewFuncEvent(pred func() bool, interval time.Duration) (*ring.Elem[*event], error) {
	if pred == nil {
		return nil, ErrInvalid
	}
	e := &event{kind: KindFunc, status: StatusPending, pred: pred, interval: interval}
	return newEventRing(e), nil
}

func newTaskEvent() *ring.Elem[*event] {
	e := &event{kind: KindTask, status: StatusPending}
	return newEventRing(e)
}

// Concat splices two or more event rings together into one ring a thread
// can Wait on in a single call.
func Concat(rings ...*ring.Elem[*event]) *ring.Elem[*event] {
	var out *ring.Elem[*event]
	for _, r := range rings {
		out = ring.Concat(out, r)
	}
	return out
}

// Isolate removes e from its ring and returns whatever remains of that
// ring (nil if e was alone).
func Isolate(e *ring.Elem[*event]) *ring.Elem[*event] {
	return ring.Isolate(e)
}

// WalkUntilOccurred is like ring.Walk but skips events that are still
// Pending, returning the first non-Pending event found in dir, or nil if
// every event in the ring is still Pending.
func WalkUntilOccurred(e *ring.Elem[*event], dir ring.Direction) *ring.Elem[*event] {
	if e == nil {
		return nil
	}
	cur := ring.Walk(e, dir)
	for cur != nil && cur != e && cur.Value.status == StatusPending {
		cur = ring.Walk(cur, dir)
	}
	if cur != nil && cur.Value.status == StatusPending {
		return nil
	}
	return cur
}

// EventStatus returns e's current status.
func EventStatus(e *ring.Elem[*event]) Status {
	return e.Value.status
}

// EventKind returns e's kind.
func EventKind(e *ring.Elem[*event]) Kind {
	return e.Value.kind
}

func markAllPending(r *ring.Elem[*event]) {
	if r == nil {
		return
	}
	ring.Do(r, func(e *ring.Elem[*event]) { e.Value.status = StatusPending })
}

func countNonPending(r *ring.Elem[*event]) int {
	if r == nil {
		return 0
	}
	n := 0
	ring.Do(r, func(e *ring.Elem[*event]) {
		if e.Value.status != StatusPending {
			n++
		}
	})
	return n
}
