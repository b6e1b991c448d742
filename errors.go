package cothread

import "errors"

// Sentinel errors returned directly (never wrapped) so callers can use
// errors.Is without needing additional unwrapping.
var (
	// ErrInvalid covers null handles, out-of-range priorities, negative
	// fds, and invalid event kinds.
	ErrInvalid = errors.New("cothread: invalid argument")

	// ErrNotPermitted covers modifying a bound attribute's stack size,
	// acquiring an uninitialized mutex, and suspending the scheduler or
	// current thread.
	ErrNotPermitted = errors.New("cothread: operation not permitted")

	// ErrBusy is returned by a non-blocking mutex/rwlock acquire attempt
	// against a held primitive.
	ErrBusy = errors.New("cothread: resource busy")

	// ErrDeadlock covers join(self), mutex_release of a non-owned mutex,
	// and join when only the caller remains. (Locking an uninitialized
	// mutex returns ErrNotPermitted instead.)
	ErrDeadlock = errors.New("cothread: operation would deadlock")

	// ErrNoSuchThread is returned by Cancel of a thread that has already
	// terminated. Join of a reaped thread returns ErrNotPermitted, or
	// ErrDeadlock when the caller is the only thread left.
	ErrNoSuchThread = errors.New("cothread: no such thread")

	// ErrNoSuchPort is returned by msgport lookups that fail to find a
	// matching name.
	ErrNoSuchPort = errors.New("cothread: no such message port")

	// ErrInterrupted names a wait in which an extra event fired instead of
	// the primary one. Wait, Lock and CondWait take no separate extra
	// event, so none of them returns it.
	ErrInterrupted = errors.New("cothread: interrupted by extra event")

	// ErrBadFD is returned by Wait when an FD event failed: poll reported
	// an error condition on the descriptor without the awaited readiness.
	ErrBadFD = errors.New("cothread: bad file descriptor")

	// ErrNoMemory is returned on allocation failure paths (primarily
	// bounded structures, e.g. a full TSD key table).
	ErrNoMemory = errors.New("cothread: out of memory")

	// ErrLoopTerminated names a runtime that Kill has torn down. No
	// operation in this package returns it.
	ErrLoopTerminated = errors.New("cothread: runtime has been killed")

	// ErrLoopAlreadyRunning is returned if Run is called a second time on
	// the same Runtime.
	ErrLoopAlreadyRunning = errors.New("cothread: runtime is already running")
)

// Canceled is the sentinel join value: Join returns this (rather than the
// value passed to Exit) when the joined thread terminated via Cancel.
var Canceled = &canceledMarker{}

type canceledMarker struct{}

func (*canceledMarker) Error() string { return "cothread: thread was canceled" }
