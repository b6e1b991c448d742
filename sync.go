package cothread

import "github.com/joeycumines/go-cothread/internal/ring"

// mutex is a recursive, owner-tracked lock. The zero value is not usable;
// construct with NewMutex. Acquisition for a mutex already held by the
// calling thread simply bumps the recursion count; releasing fully
// requires one Unlock per successful Lock.
type mutex struct {
	initialized bool
	owner       *tcb
	recursion   int
	ownerLink   *ring.Elem[*mutex]
}

// NewMutex returns a ready-to-use mutex.
func NewMutex() *mutex {
	return &mutex{initialized: true}
}

// Lock blocks until m is acquired by the calling thread.
func (rt *Runtime) Lock(m *mutex) error {
	if !m.initialized {
		return ErrNotPermitted
	}
	t := rt.current
	for {
		if m.owner == nil {
			rt.claimMutex(m, t)
			return nil
		}
		if m.owner == t {
			m.recursion++
			return nil
		}
		e, err := NewMutexEvent(m)
		if err != nil {
			return err
		}
		if _, err := rt.Wait(e); err != nil {
			return err
		}
	}
}

// TryLock attempts to acquire m without blocking, returning ErrBusy if it
// is already held by a different thread.
func (rt *Runtime) TryLock(m *mutex) error {
	if !m.initialized {
		return ErrNotPermitted
	}
	t := rt.current
	if m.owner == nil {
		rt.claimMutex(m, t)
		return nil
	}
	if m.owner == t {
		m.recursion++
		return nil
	}
	return ErrBusy
}

func (rt *Runtime) claimMutex(m *mutex, t *tcb) {
	m.owner = t
	m.recursion = 1
	m.ownerLink = ring.New(m)
	t.ownedMutexes = ring.Concat(t.ownedMutexes, m.ownerLink)
}

// Unlock releases one level of recursion on m. Returns ErrDeadlock if the
// calling thread does not hold m.
func (rt *Runtime) Unlock(m *mutex) error {
	t := rt.current
	if m.owner != t {
		return ErrDeadlock
	}
	m.recursion--
	if m.recursion > 0 {
		return nil
	}
	t.ownedMutexes = ring.Isolate(m.ownerLink)
	m.ownerLink = nil
	m.owner = nil
	return nil
}

// releaseAllMutexes force-releases every mutex t still holds, on exit or
// cancellation, regardless of recursion depth.
func (rt *Runtime) releaseAllMutexes(t *tcb) {
	for t.ownedMutexes != nil {
		e := t.ownedMutexes
		m := e.Value
		t.ownedMutexes = ring.Isolate(e)
		m.owner = nil
		m.recursion = 0
		m.ownerLink = nil
	}
}

// RWLock is a readers-writer lock built from three mutexes and a reader
// count: the classic two-mutex construction plus an ordering mutex that
// gives waiting writers preference.
type RWLock struct {
	order   *mutex // orders writers ahead of a burst of new readers
	access  *mutex // guards readers/gate
	gate    *mutex // held by the first reader in, released by the last reader out
	readers int
}

// NewRWLock returns a ready-to-use RWLock.
func NewRWLock() *RWLock {
	return &RWLock{order: NewMutex(), access: NewMutex(), gate: NewMutex()}
}

// RLock acquires a read lock. order is taken and released immediately so
// readers queue behind any writer already waiting (writer preference),
// then access guards the reader count, and the first reader in takes gate
// on behalf of every reader, releasing it only once the last reader out
// calls RUnlock.
func (rt *Runtime) RLock(l *RWLock) error {
	if err := rt.Lock(l.order); err != nil {
		return err
	}
	rt.Unlock(l.order)

	if err := rt.Lock(l.access); err != nil {
		return err
	}
	l.readers++
	first := l.readers == 1
	rt.Unlock(l.access)

	if first {
		if err := rt.Lock(l.gate); err != nil {
			rt.Lock(l.access)
			l.readers--
			rt.Unlock(l.access)
			return err
		}
	}
	return nil
}

func (rt *Runtime) RUnlock(l *RWLock) error {
	if err := rt.Lock(l.access); err != nil {
		return err
	}
	l.readers--
	last := l.readers == 0
	rt.Unlock(l.access)
	if last {
		rt.Unlock(l.gate)
	}
	return nil
}

func (rt *Runtime) WLock(l *RWLock) error {
	if err := rt.Lock(l.order); err != nil {
		return err
	}
	if err := rt.Lock(l.gate); err != nil {
		rt.Unlock(l.order)
		return err
	}
	return nil
}

func (rt *Runtime) WUnlock(l *RWLock) error {
	if err := rt.Unlock(l.gate); err != nil {
		return err
	}
	return rt.Unlock(l.order)
}

// Cond is a condition variable: threads block on it via CondWait(mu) and
// are woken by CondSignal/CondBroadcast, exactly the classic Mesa-style
// protocol (the awakened thread re-checks its predicate after CondWait
// returns, since a signal only means "maybe", not "definitely"). signaled
// and broadcast record a notify that arrived with waiters already
// registered; a thread entering CondWait while a CondSignal is still
// recorded consumes it and returns at once instead of blocking, while a
// recorded broadcast does not short-circuit CondWait. handled tracks
// whether the current signal round has been picked up by a waiter.
type Cond struct {
	waiters   int
	signaled  bool
	broadcast bool
	handled   bool
}

// NewCond returns a ready-to-use Cond.
func NewCond() *Cond { return &Cond{} }

// CondWait atomically releases m and blocks until c is signaled, then
// reacquires m before returning (even on error).
func (rt *Runtime) CondWait(c *Cond, m *mutex) error {
	if c.signaled && !c.broadcast {
		c.signaled = false
		c.handled = true
		return nil
	}

	c.waiters++
	if err := rt.Unlock(m); err != nil {
		c.waiters--
		return err
	}

	e, err := NewCondEvent(c)
	var waitErr error
	if err == nil {
		_, waitErr = rt.Wait(e)
	} else {
		waitErr = err
	}
	c.handled = true
	c.waiters--

	if lockErr := rt.Lock(m); lockErr != nil {
		return lockErr
	}
	return waitErr
}

// CondSignal wakes at most one thread blocked in CondWait(c, ...).
func (rt *Runtime) CondSignal(c *Cond) {
	if c.waiters <= 0 {
		return
	}
	c.signaled = true
	c.broadcast = false
	c.handled = false
	rt.markMatchingEvents(func(e *event) bool {
		return e.kind == KindCond && e.cond == c
	}, 1)
	rt.Yield()
}

// CondBroadcast wakes every thread blocked in CondWait(c, ...).
func (rt *Runtime) CondBroadcast(c *Cond) {
	if c.waiters <= 0 {
		return
	}
	c.signaled = true
	c.broadcast = true
	c.handled = false
	rt.markMatchingEvents(func(e *event) bool {
		return e.kind == KindCond && e.cond == c
	}, 0)
	rt.Yield()
}

// Barrier synchronizes a fixed number of threads at a rendezvous point.
// The thread that completes the barrier returns BarrierHeadlight; every
// other participant returns BarrierTaillight.
type Barrier struct {
	n       int
	count   int
	mu      *mutex
	cond    *Cond
	phase   int
}

// NewBarrier returns a Barrier that releases once n threads have called
// BarrierWait.
func NewBarrier(n int) (*Barrier, error) {
	if n <= 0 {
		return nil, ErrInvalid
	}
	return &Barrier{n: n, mu: NewMutex(), cond: NewCond()}, nil
}

func (rt *Runtime) BarrierWait(b *Barrier) (int, error) {
	if err := rt.Lock(b.mu); err != nil {
		return 0, err
	}
	myPhase := b.phase
	b.count++
	if b.count == b.n {
		b.count = 0
		b.phase++
		rt.CondBroadcast(b.cond)
		rt.Unlock(b.mu)
		return BarrierHeadlight, nil
	}
	for b.phase == myPhase {
		if err := rt.CondWait(b.cond, b.mu); err != nil {
			rt.Unlock(b.mu)
			return 0, err
		}
	}
	rt.Unlock(b.mu)
	return BarrierTaillight, nil
}
