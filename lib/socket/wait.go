package socket

import (
	"math"
	"time"
)

// InfiniteTimeout makes a wait block without a bound
const InfiniteTimeout time.Duration = -1

// WaitResult is the outcome of a readiness wait
type WaitResult int

const (
	WaitError   WaitResult = -1
	WaitTimeout WaitResult = 0
	WaitReady   WaitResult = 1
)

func (r WaitResult) String() string {
	switch r {
	case WaitReady:
		return "ready"
	case WaitTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Wait blocks until the descriptor fd is ready for reading (read=true) or
// writing. A negative timeout waits without bound.
func Wait(fd int, timeout time.Duration, read bool) (WaitResult, error) {
	return waitOnSocket(defaultSys, fd, timeout, read)
}

// waitOnSocket blocks until fd is ready for reading (read=true) or writing, the
// timeout elapses or an error occurs. Interrupted polls are restarted with the
// time that is left.
func waitOnSocket(sys sysCalls, fd int, timeout time.Duration, read bool) (WaitResult, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		timeoutMs := -1
		if timeout >= 0 {
			timeoutMs = toMillis(time.Until(deadline))
		}

		ready, err := sys.poll(fd, read, timeoutMs)
		if err != nil {
			if sys.interrupted(err) {
				if timeout >= 0 && !time.Now().Before(deadline) {
					return WaitTimeout, nil
				}
				continue
			}
			return WaitError, err
		}

		if !ready {
			return WaitTimeout, nil
		}
		return WaitReady, nil
	}
}

// toMillis rounds d up to whole milliseconds for poll(2)
func toMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
