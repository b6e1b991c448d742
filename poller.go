package cothread

import (
	"golang.org/x/sys/unix"
)

// poller wraps unix.Poll as the readiness backend. Each pass rebuilds its
// fd-set from scratch from whichever FD/SELECT events are currently
// pending, mirroring the C original's "no persistent epoll/kqueue
// registration" behavior: it trades O(1) amortized registration for a
// simpler, platform-uniform implementation built on a single syscall
// available on every unix GOOS Go supports.
type poller struct {
	maxFD int
	fds   []unix.PollFd
}

func newPoller(maxFD int) (*poller, error) {
	if maxFD <= 0 {
		maxFD = maxWatchedFD
	}
	return &poller{maxFD: maxFD}, nil
}

func (p *poller) close() {}

func fdEventsFromGoal(goal FDGoal) int16 {
	var ev int16
	if goal&UntilFDReadable != 0 {
		ev |= unix.POLLIN
	}
	if goal&UntilFDWriteable != 0 {
		ev |= unix.POLLOUT
	}
	if goal&UntilFDException != 0 {
		ev |= unix.POLLPRI
	}
	return ev
}

func isErrRevents(revents int16) bool {
	return revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0
}

func goalFromRevents(revents int16) FDGoal {
	var g FDGoal
	if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		g |= UntilFDReadable
	}
	if revents&unix.POLLOUT != 0 {
		g |= UntilFDWriteable
	}
	if revents&(unix.POLLPRI|unix.POLLERR|unix.POLLNVAL) != 0 {
		g |= UntilFDException
	}
	return g
}

// poll blocks for up to timeoutMS (negative: forever) and returns the
// revents observed for each requested watch, in the same order.
func (p *poller) poll(watches []selWatch, timeoutMS int) ([]int16, error) {
	if len(watches) == 0 {
		if timeoutMS != 0 {
			// Nothing to wait on but the caller wants to block: sleep out
			// the timeout via a zero-fd poll, which unix.Poll supports
			// directly.
			_, err := unix.Poll(nil, timeoutMS)
			if err != nil && err != unix.EINTR {
				return nil, err
			}
		}
		return nil, nil
	}
	if cap(p.fds) < len(watches) {
		p.fds = make([]unix.PollFd, len(watches))
	}
	p.fds = p.fds[:len(watches)]
	for i, w := range watches {
		p.fds[i] = unix.PollFd{Fd: int32(w.fd), Events: fdEventsFromGoal(w.goal)}
	}
	for {
		_, err := unix.Poll(p.fds, timeoutMS)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	out := make([]int16, len(watches))
	for i := range p.fds {
		out[i] = p.fds[i].Revents
	}
	return out, nil
}
