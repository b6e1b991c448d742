package cothread

import "github.com/joeycumines/logiface"

// runtimeConfig holds configuration resolved from Option values: a private
// config struct, a public Option interface, and a resolve step that applies
// defaults before any option is consulted.
type runtimeConfig struct {
	favourNew       bool
	defaultStackKiB int
	workerCount     int
	workerQueueCap  int
	maxWatchedFD    int
	logger          *logiface.Logger[*logEvent]
}

// Option configures a Runtime at construction time. Values are produced by
// the With* functions below.
type Option interface {
	apply(*runtimeConfig)
}

type optionFunc func(*runtimeConfig)

func (f optionFunc) apply(c *runtimeConfig) { f(c) }

// WithFavourNew toggles the scheduler's default behavior of moving the last
// thread drained from NEW to "favorite" priority (one above the head of the
// whole ready queue, so it runs next) rather than leaving it at its own
// base priority. Default: true.
func WithFavourNew(enabled bool) Option {
	return optionFunc(func(c *runtimeConfig) { c.favourNew = enabled })
}

// WithDefaultStackSize sets the default stack size, in KiB, used by Spawn
// when the caller's Attr doesn't specify one. The effective floor is
// always 8 KiB and the built-in default is 64 KiB.
func WithDefaultStackSize(kib int) Option {
	return optionFunc(func(c *runtimeConfig) { c.defaultStackKiB = kib })
}

// WithWorkerPool sets the size and bounded queue capacity of the worker
// offload pool. queueCap <= 0 selects a default of 3*count.
func WithWorkerPool(count, queueCap int) Option {
	return optionFunc(func(c *runtimeConfig) {
		c.workerCount = count
		c.workerQueueCap = queueCap
	})
}

// WithMaxWatchedFD sets the maximum watched file descriptor recorded by the
// readiness backend (n <= 0 selects the default). The backend stores the
// value only: descriptors at or above it are still polled.
func WithMaxWatchedFD(n int) Option {
	return optionFunc(func(c *runtimeConfig) { c.maxWatchedFD = n })
}

// WithLogger attaches a structured logger (see logging.go). The only event
// logged is stack-guard corruption detected by the scheduler. A nil logger
// (the default) discards everything.
func WithLogger(l *logiface.Logger[*logEvent]) Option {
	return optionFunc(func(c *runtimeConfig) { c.logger = l })
}

func resolveOptions(opts []Option) *runtimeConfig {
	c := &runtimeConfig{
		favourNew:       true,
		defaultStackKiB: defaultStackSizeKiB,
		workerCount:     4,
		workerQueueCap:  0,
		maxWatchedFD:    maxWatchedFD,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(c)
	}
	if c.logger == nil {
		c.logger = discardLogger()
	}
	return c
}
