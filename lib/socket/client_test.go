package socket

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingResolver always fails
type failingResolver struct{}

func (failingResolver) Resolve(host string, port uint16) ([]Candidate, error) {
	return nil, fmt.Errorf("%w: %s:%d", ErrResolve, host, port)
}

// TestCloseIsIdempotent tests that Close can be called on a never connected
// client and repeatedly on a connected one
func TestCloseIsIdempotent(t *testing.T) {
	sys := newFakeSys()
	c := newFakeClient(sys, testCandidates(1))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.Empty(t, sys.closed)

	ok, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
	assert.Len(t, sys.closed, 1, "handle must be released exactly once")
	assert.Equal(t, 0, sys.openCount())
}

// TestConnectFallbackLeavesOneHandle tests that failing candidates are closed
// before the next one is tried
func TestConnectFallbackLeavesOneHandle(t *testing.T) {
	sys := newFakeSys()
	candidates := testCandidates(3)
	sys.connectFn = func(fd int, addr netip.AddrPort) error {
		if addr != candidates[2].Addr {
			return errFakeRefused
		}
		return nil
	}
	c := newFakeClient(sys, candidates)

	ok, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 3, sys.sockets)
	assert.Equal(t, 1, sys.openCount())
	assert.Len(t, sys.closed, 2)
	assert.Equal(t, []netip.AddrPort{candidates[0].Addr, candidates[1].Addr, candidates[2].Addr}, sys.dialed)
}

// TestConnectTimeoutIsNotAnError tests that a timeout on all candidates is
// reported as false without an error
func TestConnectTimeoutIsNotAnError(t *testing.T) {
	sys := newFakeSys()
	sys.connectFn = func(int, netip.AddrPort) error { return errFakePending }
	sys.pollFn = func(int, bool, int) (bool, error) { return false, nil }
	c := newFakeClient(sys, testCandidates(2))

	ok, err := c.Connect("node", 9000, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, c.IsConnected())
	assert.Equal(t, 0, sys.openCount())
	assert.Len(t, sys.closed, 2)
}

// TestConnectResolveError tests that resolution failures are hard errors
func TestConnectResolveError(t *testing.T) {
	sys := newFakeSys()
	c := newFakeClient(sys, failingResolver{})

	ok, err := c.Connect("does.not.exist", 9000, time.Second)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrResolve))
	assert.Equal(t, 0, sys.sockets, "no candidate may be attempted")
}

// TestConnectLastFailureWins tests that the result depends on the last candidate:
// a timeout followed by a refusal is an error, a refusal followed by a timeout is not
func TestConnectLastFailureWins(t *testing.T) {
	candidates := testCandidates(2)

	t.Run("timeout then refused", func(t *testing.T) {
		sys := newFakeSys()
		sys.connectFn = func(fd int, addr netip.AddrPort) error {
			if addr == candidates[0].Addr {
				return errFakePending
			}
			return errFakeRefused
		}
		sys.pollFn = func(int, bool, int) (bool, error) { return false, nil }
		c := newFakeClient(sys, candidates)

		ok, err := c.Connect("node", 9000, 10*time.Millisecond)
		require.Error(t, err)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, ErrConnect))
		assert.Contains(t, err.Error(), errFakeRefused.Error())
	})

	t.Run("refused then timeout", func(t *testing.T) {
		sys := newFakeSys()
		sys.connectFn = func(fd int, addr netip.AddrPort) error {
			if addr == candidates[0].Addr {
				return errFakeRefused
			}
			return errFakePending
		}
		sys.pollFn = func(int, bool, int) (bool, error) { return false, nil }
		c := newFakeClient(sys, candidates)

		ok, err := c.Connect("node", 9000, 10*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// TestConnectSocketCreateAborts tests that a socket creation failure aborts
// Connect without trying further candidates
func TestConnectSocketCreateAborts(t *testing.T) {
	sys := newFakeSys()
	sys.socketErr = errors.New("fake: too many open files")
	c := newFakeClient(sys, testCandidates(3))

	ok, err := c.Connect("node", 9000, time.Second)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrSocketCreate))
	assert.Contains(t, err.Error(), "too many open files")
	assert.Empty(t, sys.dialed)
}

// TestConnectPendingErrorAdvances tests that a pending connect that completes
// with an error is treated as a per-candidate failure
func TestConnectPendingErrorAdvances(t *testing.T) {
	sys := newFakeSys()
	candidates := testCandidates(2)
	sys.connectFn = func(int, netip.AddrPort) error { return errFakePending }
	sys.socketErrorFn = func(fd int) error {
		if fd == 100 {
			return errFakeRefused
		}
		return nil
	}
	c := newFakeClient(sys, candidates)

	ok, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{100}, sys.closed)
	assert.Equal(t, 1, sys.openCount())
}

// TestConnectWaitErrorAdvances tests that a failing readiness wait is a
// per-candidate failure, not a timeout
func TestConnectWaitErrorAdvances(t *testing.T) {
	sys := newFakeSys()
	sys.connectFn = func(int, netip.AddrPort) error { return errFakePending }
	sys.pollFn = func(int, bool, int) (bool, error) { return false, errors.New("fake: poll failed") }
	c := newFakeClient(sys, testCandidates(1))

	ok, err := c.Connect("node", 9000, time.Second)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrConnect))
	assert.Contains(t, err.Error(), "poll failed")
}

// TestConnectTimeoutPerCandidate tests that by default every candidate's
// pending connect gets the full timeout
func TestConnectTimeoutPerCandidate(t *testing.T) {
	sys := newFakeSys()
	sys.connectFn = func(int, netip.AddrPort) error { return errFakePending }
	sys.pollFn = func(int, bool, int) (bool, error) {
		time.Sleep(30 * time.Millisecond)
		return false, nil
	}
	c := newFakeClient(sys, testCandidates(3))

	ok, err := c.Connect("node", 9000, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, sys.pollTimeoutsMs, 3)
	for _, ms := range sys.pollTimeoutsMs {
		assert.Equal(t, 50, ms)
	}
}

// TestConnectStrictDeadline tests that a strict deadline is shared by all candidates
func TestConnectStrictDeadline(t *testing.T) {
	sys := newFakeSys()
	sys.connectFn = func(int, netip.AddrPort) error { return errFakePending }
	sys.pollFn = func(_ int, _ bool, timeoutMs int) (bool, error) {
		time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
		return false, nil
	}
	opts := DefaultOptions()
	opts.Resolver = testCandidates(3)
	opts.StrictDeadline = true
	c := newTCPClient(opts, sys)

	start := time.Now()
	ok, err := c.Connect("node", 9000, 60*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	require.NotEmpty(t, sys.pollTimeoutsMs)
	assert.LessOrEqual(t, sys.pollTimeoutsMs[0], 60)
	assert.Less(t, len(sys.pollTimeoutsMs), 3, "the budget must run out before the last candidate")
	assert.Equal(t, 0, sys.openCount())
}

// TestConnectReplacesExistingConnection tests that Connect releases the old handle
func TestConnectReplacesExistingConnection(t *testing.T) {
	sys := newFakeSys()
	c := newFakeClient(sys, testCandidates(1))

	_, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)
	_, err = c.Connect("node", 9000, time.Second)
	require.NoError(t, err)

	assert.Equal(t, []int{100}, sys.closed)
	assert.Equal(t, 1, sys.openCount())
	assert.Equal(t, 101, c.handle)
}

// TestIsBlockingReflectsModeSwitch tests that a failed non-blocking switch is recorded
func TestIsBlockingReflectsModeSwitch(t *testing.T) {
	t.Run("switch succeeds", func(t *testing.T) {
		sys := newFakeSys()
		c := newFakeClient(sys, testCandidates(1))
		ok, err := c.Connect("node", 9000, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, c.IsBlocking())
	})

	t.Run("switch fails", func(t *testing.T) {
		sys := newFakeSys()
		sys.nonblockErr = errors.New("fake: fcntl failed")
		c := newFakeClient(sys, testCandidates(1))
		ok, err := c.Connect("node", 9000, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, c.IsBlocking())
	})
}

// TestTrySetOptionsKeepAliveGate tests that keep-alive parameters are only set
// when keep-alive could be enabled and that other failures are ignored
func TestTrySetOptionsKeepAliveGate(t *testing.T) {
	t.Run("keep-alive enabled", func(t *testing.T) {
		sys := newFakeSys()
		sys.optErr[optNoDelay] = errors.New("fake: not supported")
		c := newFakeClient(sys, testCandidates(1))
		ok, err := c.Connect("node", 9000, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []sockOpt{
			optSendBuffer, optRecvBuffer, optNoDelay, optOOBInline,
			optKeepAlive, optKeepIdle, optKeepInterval,
		}, sys.opts[100])
	})

	t.Run("keep-alive rejected", func(t *testing.T) {
		sys := newFakeSys()
		sys.optErr[optKeepAlive] = errors.New("fake: not supported")
		c := newFakeClient(sys, testCandidates(1))
		ok, err := c.Connect("node", 9000, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotContains(t, sys.opts[100], optKeepIdle)
		assert.NotContains(t, sys.opts[100], optKeepInterval)
	})
}

// TestSendReceiveNotConnected tests transfers on a client without a socket
func TestSendReceiveNotConnected(t *testing.T) {
	c := newFakeClient(newFakeSys(), testCandidates(1))

	n, err := c.Send([]byte("x"), time.Second)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrNotConnected)

	n, err = c.Receive(make([]byte, 1), time.Second)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrNotConnected)
}

// TestSendReceivePartialTransfer tests that short transfers are returned as is
func TestSendReceivePartialTransfer(t *testing.T) {
	sys := newFakeSys()
	sendCalls, recvCalls := 0, 0
	sys.sendFn = func(_ int, p []byte) (int, error) {
		sendCalls++
		return len(p) / 2, nil
	}
	sys.recvFn = func(_ int, p []byte) (int, error) {
		recvCalls++
		return copy(p, "abc"), nil
	}
	c := newFakeClient(sys, testCandidates(1))
	_, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)

	n, err := c.Send(make([]byte, 1024), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, 1, sendCalls)

	buf := make([]byte, 1024)
	n, err = c.Receive(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf[:n]))
	assert.Equal(t, 1, recvCalls)
}

// TestSendReceiveWaitTimeout tests that a timed out wait skips the transfer
func TestSendReceiveWaitTimeout(t *testing.T) {
	sys := newFakeSys()
	c := newFakeClient(sys, testCandidates(1))
	_, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)

	transfers := 0
	sys.sendFn = func(int, []byte) (int, error) { transfers++; return 0, nil }
	sys.recvFn = func(int, []byte) (int, error) { transfers++; return 0, nil }
	sys.pollFn = func(int, bool, int) (bool, error) { return false, nil }

	_, err = c.Send([]byte("x"), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	_, err = c.Receive(make([]byte, 1), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, transfers)

	sys.pollFn = func(int, bool, int) (bool, error) { return false, errors.New("fake: poll failed") }
	_, err = c.Send([]byte("x"), 10*time.Millisecond)
	assert.EqualError(t, err, "fake: poll failed")
	assert.Equal(t, 0, transfers)
}

// TestSendBlockingSkipsWait tests that a blocking socket transfers without waiting
func TestSendBlockingSkipsWait(t *testing.T) {
	sys := newFakeSys()
	sys.nonblockErr = errors.New("fake: fcntl failed")
	c := newFakeClient(sys, testCandidates(1))
	_, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)

	sys.pollFn = func(int, bool, int) (bool, error) {
		t.Fatal("poll must not be called for a blocking socket")
		return false, nil
	}
	n, err := c.Send([]byte("hello"), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

// TestSendPassesOSErrors tests that transfer errors are returned untranslated
func TestSendPassesOSErrors(t *testing.T) {
	sys := newFakeSys()
	c := newFakeClient(sys, testCandidates(1))
	_, err := c.Connect("node", 9000, time.Second)
	require.NoError(t, err)

	sys.sendFn = func(int, []byte) (int, error) { return 0, errFakeWouldBlock }
	n, err := c.Send([]byte("x"), time.Second)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, errFakeWouldBlock)
	assert.True(t, c.IsWouldBlock(err))
	assert.False(t, c.IsWouldBlock(nil))
}
