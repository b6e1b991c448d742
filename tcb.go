package cothread

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-cothread/internal/fiber"
	"github.com/joeycumines/go-cothread/internal/pqueue"
	"github.com/joeycumines/go-cothread/internal/ring"
)

// State is a thread's lifecycle state. It always agrees with which of the
// scheduler's five priority queues (or the distinguished "current" slot, or
// none, for the scheduler itself) the thread occupies.
type State int

const (
	StateScheduler State = iota
	StateNew
	StateReady
	StateWaiting
	StateWaitingForWorker
	StateSuspended
	StateDead
)

func (s State) String() string {
	switch s {
	case StateScheduler:
		return "SCHEDULER"
	case StateNew:
		return "NEW"
	case StateReady:
		return "READY"
	case StateWaiting:
		return "WAITING"
	case StateWaitingForWorker:
		return "WAITING_FOR_WORKER"
	case StateSuspended:
		return "SUSPENDED"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// ThreadID is an opaque, comparable handle to a thread, suitable for use as
// a map key and for equality checks against Runtime.Self(). It carries no
// exported fields: everything about a thread is read via Attr or the ctrl
// queries.
type ThreadID = *tcb

// cleanupFrame is one pushed cleanup handler (cleanup_push/cleanup_pop).
type cleanupFrame struct {
	fn  func(arg any)
	arg any
}

// cancelState packs a thread's two independent cancellation bits: whether
// cancellation is enabled at all, and whether it takes effect immediately
// (async) or only at the next cancellation point.
type cancelState struct {
	enabled bool
	async   bool
}

// tcb is the thread control block. Every field not explicitly documented
// as concurrency-safe is only ever touched by the single goroutine holding
// the scheduling baton -- either the scheduler itself, or the thread's own
// fiber while it runs -- so no locking is needed around it. The one
// exception is the worker pool's use of the TASK event's fini flag, which
// is an atomic (see worker.go).
type tcb struct {
	id       uint64
	priority int
	name     string

	state State

	ctx *fiber.Context

	// pqElem links this TCB into whichever of the scheduler's five queues
	// currently owns it, per the State. Never in more than one queue.
	pqElem pqueue.Elem[*tcb]

	stackSizeKiB int
	loanedStack  bool
	stackGuard   uint32

	dispatches   uint64
	spawnedAt    time.Time
	lastRan      time.Time
	accumRunning time.Duration

	// events points at the ring the thread is waiting on; non-nil iff
	// state is Waiting or WaitingForWorker.
	events *ring.Elem[*event]

	// waitExtra, if non-nil, is the event whose occurrence interrupted the
	// wait (e.g. a cancellation event spliced in alongside the primary
	// ring) rather than the primary condition itself.
	waitExtra *ring.Elem[*event]

	joinable bool
	joinArg  any
	joinErr  error

	tsd [maxTSDKeys]any

	cleanups []cleanupFrame

	cancelReq   atomic.Bool
	cancelState cancelState

	// ownedMutexes rings together every mutex this thread currently holds,
	// via each mutex's ownerLink node, so thread death can release them all.
	ownedMutexes *ring.Elem[*mutex]

	rt *Runtime
}

// newTCB allocates a TCB. A stackSizeKiB of 0 selects the runtime default,
// the result is floored at minStackSizeKiB, and every TCB gets the guard
// word. New turns the result into the distinguished "main" TCB afterwards
// (stack size 0, loaned stack, the caller's own goroutine as its context).
func newTCB(rt *Runtime, id uint64, attr resolvedAttr) *tcb {
	size := attr.stackSizeKiB
	if size == 0 {
		size = rt.cfg.defaultStackKiB
	}
	if size < minStackSizeKiB {
		size = minStackSizeKiB
	}
	t := &tcb{
		id:           id,
		priority:     attr.priority,
		name:         attr.name,
		state:        StateNew,
		stackSizeKiB: size,
		loanedStack:  attr.stackAddr,
		stackGuard:   stackGuardMagic,
		spawnedAt:    time.Now(),
		joinable:     attr.joinable,
		cancelState:  cancelState{enabled: true, async: false},
		rt:           rt,
	}
	return t
}

// corruptStackGuardForTest simulates stack overflow: a thread whose guard
// word no longer matches stackGuardMagic is marked dead the next time the
// scheduler inspects it. There is no real memory to overflow -- goroutines
// grow their own stacks automatically -- so this is how the behavior is
// exercised in tests.
func (t *tcb) corruptStackGuardForTest() {
	t.stackGuard = 0
}

// CorruptStackGuardForTest exposes corruptStackGuardForTest across package
// boundaries so external tests can exercise the dispatch-time guard check
// without a real stack overflow to trigger it.
func CorruptStackGuardForTest(id ThreadID) {
	id.corruptStackGuardForTest()
}
