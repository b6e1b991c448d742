// Package cothread implements a user-space cooperative multithreading
// runtime: a priority-queue scheduler over green threads ("fibers", see
// internal/fiber), a compositional event/wait core, synchronization
// primitives built purely on events, and a worker-offload pool for
// otherwise-blocking calls.
package cothread

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-cothread/internal/fiber"
	"github.com/joeycumines/go-cothread/internal/pqueue"
	"github.com/joeycumines/go-cothread/internal/ring"
	"github.com/joeycumines/logiface"
)

// Runtime is one independent instance of the cooperative scheduler. Each
// New() owns its own state rather than installing process-wide globals, so
// tests may run many Runtimes concurrently.
type Runtime struct {
	cfg *runtimeConfig
	log *logiface.Logger[*logEvent]

	// The five scheduler queues.
	newQ pqueue.Queue[*tcb]
	rdyQ pqueue.Queue[*tcb]
	waitQ pqueue.Queue[*tcb]
	suspQ pqueue.Queue[*tcb]
	deadQ pqueue.Queue[*tcb]

	nextThreadID uint64
	threads      map[uint64]*tcb // for Ctrl dumps and TID lookups only

	tsdDestructors [maxTSDKeys]func(any)
	tsdNextKey     int

	scheduler *tcb
	main      *tcb
	current   *tcb

	load         float64
	lastLoadTick time.Time

	portRegistry *ring.Elem[*Port]

	poller *poller

	workers *workerPool

	runOnce  sync.Once
	running  atomic.Bool
	killed   atomic.Bool
	runErr   error
	doneCh   chan struct{}

	snapshot atomic.Pointer[CtrlResult]
}

// New constructs a Runtime. The runtime is inert until Run is called.
func New(opts ...Option) (*Runtime, error) {
	cfg := resolveOptions(opts)
	p, err := newPoller(cfg.maxWatchedFD)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		cfg:     cfg,
		log:     cfg.logger,
		threads: make(map[uint64]*tcb),
		poller:  p,
		doneCh:  make(chan struct{}),
	}
	rt.workers = newWorkerPool(rt, cfg.workerCount, cfg.workerQueueCap)

	rt.scheduler = &tcb{id: 0, state: StateScheduler, rt: rt}
	rt.scheduler.ctx = fiber.NewBackground(rt.schedulerLoop)

	mainAttr := resolvedAttr{priority: PrioStd, name: "main", joinable: false}
	rt.main = newTCB(rt, rt.nextID(), mainAttr)
	rt.main.loanedStack = true
	rt.main.stackSizeKiB = 0
	rt.main.state = StateScheduler // placeholder until Run starts it
	rt.main.ctx = fiber.NewForeground()
	rt.threads[rt.main.id] = rt.main

	rt.publishSnapshot()
	return rt, nil
}

func (rt *Runtime) nextID() uint64 {
	rt.nextThreadID++
	return rt.nextThreadID
}

// Run starts the scheduler and the worker pool, then runs entry as the
// body of the distinguished "main" thread, exactly as if it had been the
// function passed to a Spawn whose attribute set joinable=false. Run
// blocks until the runtime terminates: either because entry returned and
// every other thread has also finished, or because Kill was called.
//
// Run must be called at most once per Runtime and must not be called from
// within the runtime itself.
func (rt *Runtime) Run(entry func(rt *Runtime)) error {
	if !rt.running.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	rt.workers.start()
	rt.main.state = StateNew
	rt.main.pqElem.Value = rt.main
	rt.newQ.Insert(rt.main.priority, &rt.main.pqElem)

	// Hand off to the scheduler. The calling goroutine IS main's fiber; it
	// resumes here once the scheduler dispatches main for the first time.
	fiber.Switch(rt.main.ctx, rt.scheduler.ctx)

	entry(rt)

	rt.waitForOnlyMain()

	// main's own goroutine is the caller of Run and must actually return,
	// unlike a spawned thread's goroutine, which parks forever once dead:
	// run the termination bookkeeping directly rather than going through
	// exit's yield-to-scheduler tail.
	rt.finishMain()
	return nil
}

// waitForOnlyMain blocks the calling (main) thread, installing a FUNC event
// and waiting on it, until every other spawned thread has died. If other
// threads are still alive when entry returns, they would otherwise be
// abandoned mid-fiber once main tears the runtime down.
func (rt *Runtime) waitForOnlyMain() {
	for !rt.onlyMainRemains() {
		e, err := NewFuncEvent(rt.onlyMainRemains, 5*time.Millisecond)
		if err != nil {
			return
		}
		if _, err := rt.Wait(e); err != nil {
			return
		}
	}
}

func (rt *Runtime) onlyMainRemains() bool {
	for _, t := range rt.threads {
		if t != rt.main && t.state != StateDead {
			return false
		}
	}
	return true
}

func (rt *Runtime) finishMain() {
	t := rt.main
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		fn, arg := t.cleanups[i].fn, t.cleanups[i].arg
		t.cleanups[i] = cleanupFrame{}
		fn(arg)
	}
	t.cleanups = nil
	rt.releaseAllMutexes(t)
	rt.runTSDDestructors(t)
	t.state = StateDead
	rt.deadQ.Insert(t.priority, &t.pqElem)
	rt.publishSnapshot()
	rt.Kill()
}

// Kill tears the runtime down: it marks the runtime killed (the scheduler
// loop returns at the start of its next iteration), stops the worker pool,
// and releases the readiness backend. It does not cancel live threads:
// every thread still parked in its fiber stays parked. Safe to call more
// than once; only the first call has effect.
func (rt *Runtime) Kill() {
	rt.runOnce.Do(func() {
		rt.killed.Store(true)
		rt.workers.stop()
		rt.poller.close()
		close(rt.doneCh)
	})
}

// Version returns the runtime's version string.
func (rt *Runtime) Version() string { return Version }

// Self returns the currently-running thread's id. Must be called from
// within a green thread (i.e. during Run).
func (rt *Runtime) Self() ThreadID { return rt.current }

func (rt *Runtime) isMain(t *tcb) bool { return t == rt.main }
