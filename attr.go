package cothread

import "time"

// maxNameLen bounds Attr.SetName; longer names are silently truncated.
const maxNameLen = 63

// Attr is a detachable thread configuration. A free-standing Attr only
// holds the values a future Spawn will use; once bound to a live thread
// (AttrOf), stack size/address become read-only (SetStackSize and
// SetStackAddr return ErrNotPermitted) and a set of additional read-only
// queries surface the bound thread's live timing/state.
type Attr struct {
	bound *tcb

	priority      int
	name          string
	joinable      bool
	cancelEnabled bool
	cancelAsync   bool
	stackSizeKiB  int
	ownStack      bool
}

// resolvedAttr is the plain-data snapshot Spawn/newTCB consume; it exists
// so newTCB doesn't need to know about Attr's bound/free-standing split.
type resolvedAttr struct {
	priority     int
	name         string
	joinable     bool
	stackSizeKiB int
	stackAddr    bool
}

// NewAttr returns a free-standing Attr with the standard defaults:
// priority STD, joinable, deferred cancellation enabled.
func NewAttr() *Attr {
	return &Attr{
		priority:      PrioStd,
		joinable:      true,
		cancelEnabled: true,
	}
}

// AttrOf returns an Attr bound to t's live state. Reads pass through to t;
// writes to stack size/address fail with ErrNotPermitted.
func AttrOf(t ThreadID) *Attr {
	if t == nil {
		return nil
	}
	return &Attr{bound: t}
}

func (a *Attr) Priority() int {
	if a.bound != nil {
		return a.bound.priority
	}
	return a.priority
}

func (a *Attr) SetPriority(p int) error {
	if p < PrioMin || p > PrioMax {
		return ErrInvalid
	}
	if a.bound != nil {
		a.bound.priority = p
		return nil
	}
	a.priority = p
	return nil
}

func (a *Attr) Name() string {
	if a.bound != nil {
		return a.bound.name
	}
	return a.name
}

func (a *Attr) SetName(name string) {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if a.bound != nil {
		a.bound.name = name
		return
	}
	a.name = name
}

func (a *Attr) Joinable() bool {
	if a.bound != nil {
		return a.bound.joinable
	}
	return a.joinable
}

func (a *Attr) SetJoinable(v bool) {
	if a.bound != nil {
		a.bound.joinable = v
		return
	}
	a.joinable = v
}

// StackSize returns the configured stack size in KiB (0 on a free-standing
// Attr means "use the runtime default").
func (a *Attr) StackSize() int {
	if a.bound != nil {
		return a.bound.stackSizeKiB
	}
	return a.stackSizeKiB
}

// SetStackSize sets the stack size, in KiB, for a future Spawn. Returns
// ErrNotPermitted if this Attr is bound to a live thread.
func (a *Attr) SetStackSize(kib int) error {
	if a.bound != nil {
		return ErrNotPermitted
	}
	if kib < 0 {
		return ErrInvalid
	}
	a.stackSizeKiB = kib
	return nil
}

// SetStackAddr marks that the caller will supply its own stack storage
// ("loan"); go-cothread threads are goroutines and don't actually accept
// caller memory, so this only flips the loaned-stack flag surfaced by
// Attr.Loaned. Returns ErrNotPermitted if bound.
func (a *Attr) SetStackAddr(loaned bool) error {
	if a.bound != nil {
		return ErrNotPermitted
	}
	a.ownStack = loaned
	return nil
}

func (a *Attr) Loaned() bool {
	if a.bound != nil {
		return a.bound.loanedStack
	}
	return a.ownStack
}

// --- read-only queries of a bound Attr ---

func (a *Attr) State() (State, error) {
	if a.bound == nil {
		return 0, ErrNotPermitted
	}
	return a.bound.state, nil
}

func (a *Attr) Dispatches() (uint64, error) {
	if a.bound == nil {
		return 0, ErrNotPermitted
	}
	return a.bound.dispatches, nil
}

func (a *Attr) SpawnedAt() (time.Time, error) {
	if a.bound == nil {
		return time.Time{}, ErrNotPermitted
	}
	return a.bound.spawnedAt, nil
}

func (a *Attr) LastRan() (time.Time, error) {
	if a.bound == nil {
		return time.Time{}, ErrNotPermitted
	}
	return a.bound.lastRan, nil
}

func (a *Attr) AccumRunning() (time.Duration, error) {
	if a.bound == nil {
		return 0, ErrNotPermitted
	}
	return a.bound.accumRunning, nil
}

func (a *Attr) resolve() resolvedAttr {
	return resolvedAttr{
		priority:     a.priority,
		name:         a.name,
		joinable:     a.joinable,
		stackSizeKiB: a.stackSizeKiB,
		stackAddr:    a.ownStack,
	}
}

// Destroy releases a, which must not be bound to a live thread attribute
// lookup (AttrOf results are views, not owned resources, so Destroy on
// those is a no-op other than clearing the binding).
func (a *Attr) Destroy() {
	a.bound = nil
}
