package cothread

// Priority bounds.
const (
	PrioMin = -5
	PrioStd = 0
	PrioMax = 5
)

// Stack sizing. The sizes are accounting values recorded per TCB and the
// magic is the TCB's guard word (see tcb.go); Go goroutines manage their
// own real stacks and grow them automatically, so these constants exist to preserve the attribute
// surface (Attr stack size get/set) and the stack-guard testable property,
// not to size an actual allocation.
const (
	defaultStackSizeKiB = 64
	minStackSizeKiB     = 8
	stackGuardMagic     = 0xDEAD
)

// TSD limits.
const (
	maxTSDKeys           = 256
	destructorIterations = 4
)

// maxWatchedFD is the default maximum watched file descriptor recorded by
// the readiness backend; poll does not enforce it.
const maxWatchedFD = 1024

// Barrier sentinel returns.
const (
	BarrierHeadlight = -1
	BarrierTaillight = -2
)

// Version is returned by Runtime.Version.
const Version = "0.1.0"
