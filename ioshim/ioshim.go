// Package ioshim adapts a handful of ordinarily-blocking syscalls (read,
// write, connect) into the FD-event wait primitive so they cooperate with
// the scheduler instead of stalling every other thread: with the
// descriptor already in non-blocking mode (the caller sets it; these
// wrappers do not), attempt the call, and when it would block, Wait on the
// corresponding readiness event before retrying.
package ioshim

import (
	"time"

	"github.com/joeycumines/go-cothread"
	"golang.org/x/sys/unix"
)

// Read reads into buf from fd, blocking the calling green thread (not the
// process) until data is available. fd must already be in non-blocking
// mode.
func Read(rt *cothread.Runtime, fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return n, err
		}
		if err := waitReadable(rt, fd); err != nil {
			return 0, err
		}
	}
}

// Write writes buf to fd, blocking the calling green thread until the
// descriptor accepts more data. fd must already be in non-blocking mode.
func Write(rt *cothread.Runtime, fd int, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(fd, buf[total:])
		if n > 0 {
			total += n
		}
		if err == nil {
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return total, err
		}
		if err := waitWriteable(rt, fd); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Connect initiates a non-blocking connect on fd and blocks the calling
// green thread until it completes (successfully or not).
func Connect(rt *cothread.Runtime, fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return err
	}
	if err := waitWriteable(rt, fd); err != nil {
		return err
	}
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Sleep suspends the calling green thread for d without blocking any
// other thread.
func Sleep(rt *cothread.Runtime, d time.Duration) error {
	return rt.Nap(d)
}

func waitReadable(rt *cothread.Runtime, fd int) error {
	e, err := cothread.NewFDEvent(fd, cothread.UntilFDReadable)
	if err != nil {
		return err
	}
	_, err = rt.Wait(e)
	return err
}

func waitWriteable(rt *cothread.Runtime, fd int) error {
	e, err := cothread.NewFDEvent(fd, cothread.UntilFDWriteable)
	if err != nil {
		return err
	}
	_, err = rt.Wait(e)
	return err
}
