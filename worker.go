package cothread

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-cothread/internal/ring"
)

// task is one unit of work handed out to the worker pool: an otherwise-
// blocking call a green thread wants to run without stalling every other
// thread in the process.
type task struct {
	fn        func() (any, error)
	event     *event
	resultVal any
	resultErr error
}

// workerPool runs tasks on a fixed number of real OS threads (goroutines),
// bridging blocking calls back into the cooperative world via a TASK
// event each caller waits on. The task channel is the bounded queue: once
// full, HandOut backs off cooperatively rather than blocking the caller's
// goroutine (which would also stall the scheduler, since every green
// thread's goroutine holds the scheduling baton while it runs).
type workerPool struct {
	rt       *Runtime
	count    int
	queueCap int
	tasks    chan *task
	quit     chan struct{}
	wg       sync.WaitGroup

	outstandingCount atomic.Int64
}

func newWorkerPool(rt *Runtime, count, queueCap int) *workerPool {
	if count <= 0 {
		count = 4
	}
	if queueCap <= 0 {
		queueCap = 3 * count
	}
	return &workerPool{
		rt:       rt,
		count:    count,
		queueCap: queueCap,
		tasks:    make(chan *task, queueCap),
		quit:     make(chan struct{}),
	}
}

func (wp *workerPool) start() {
	for i := 0; i < wp.count; i++ {
		wp.wg.Add(1)
		go wp.loop()
	}
}

func (wp *workerPool) loop() {
	defer wp.wg.Done()
	for {
		select {
		case t := <-wp.tasks:
			t.resultVal, t.resultErr = t.fn()
			t.event.fini.Store(true)
		case <-wp.quit:
			return
		}
	}
}

func (wp *workerPool) stop() {
	select {
	case <-wp.quit:
	default:
		close(wp.quit)
	}
	wp.wg.Wait()
}

func (wp *workerPool) outstanding() int64 { return wp.outstandingCount.Load() }

func (wp *workerPool) hasRoom() bool { return len(wp.tasks) < cap(wp.tasks) }

// TaskHandle is a submitted but not-yet-collected unit of offloaded work.
type TaskHandle struct {
	t    *task
	ring *ring.Elem[*event]
}

// HandOut submits fn to the worker pool's bounded queue and returns
// immediately with a handle, once there is room: if the queue is full,
// the calling thread blocks cooperatively (reporting ordinary WAITING,
// not WAITING_FOR_WORKER -- no worker has been handed anything yet) until
// a slot frees up. fn then runs on its own OS thread, concurrently with
// every green thread.
func (rt *Runtime) HandOut(fn func() (any, error)) (*TaskHandle, error) {
	if fn == nil {
		return nil, ErrInvalid
	}
	wp := rt.workers
	for !wp.hasRoom() {
		e, err := NewFuncEvent(wp.hasRoom, 2*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if _, err := rt.Wait(e); err != nil {
			return nil, err
		}
	}

	t := &task{fn: fn}
	r := newTaskEvent()
	t.event = r.Value

	wp.outstandingCount.Add(1)
	wp.tasks <- t
	return &TaskHandle{t: t, ring: r}, nil
}

// GetBack blocks the calling thread (reporting StateWaitingForWorker)
// until h's task completes, then returns whatever fn returned.
func (rt *Runtime) GetBack(h *TaskHandle) (any, error) {
	if h == nil || h.t == nil {
		return nil, ErrInvalid
	}
	defer rt.workers.outstandingCount.Add(-1)
	if !h.t.event.fini.Load() {
		if _, err := rt.waitAs(h.ring, StateWaitingForWorker); err != nil {
			return nil, err
		}
	}
	return h.t.resultVal, h.t.resultErr
}
