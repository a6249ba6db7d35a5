package socket

import (
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("socket")

// invalidHandle marks a client without a socket
const invalidHandle = -1

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// socketHandle is a descriptor owned by a single connection attempt. Only the
// winning attempt's handle is moved into the client.
type socketHandle struct {
	fd       int
	blocking bool
}

// attemptOutcome is the result of connecting to a single candidate
type attemptOutcome int

const (
	attemptConnected attemptOutcome = iota
	attemptFailed
	attemptTimedOut
)

// connectBudget hands out the timeout for each candidate's pending connect
type connectBudget struct {
	timeout  time.Duration
	strict   bool
	deadline time.Time
}

func newConnectBudget(timeout time.Duration, strict bool) connectBudget {
	b := connectBudget{timeout: timeout, strict: strict && timeout >= 0}
	if b.strict {
		b.deadline = time.Now().Add(timeout)
	}
	return b
}

// next returns the timeout for the next candidate, false if the budget is used up
func (b connectBudget) next() (time.Duration, bool) {
	if !b.strict {
		return b.timeout, true
	}
	left := time.Until(b.deadline)
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// --------------------------------------------------------------------------
// TCP Client
// --------------------------------------------------------------------------

// TCPClient owns one TCP socket to a cluster node. The zero value is not usable,
// use NewTCPClient or NewTCPClientWithOptions.
type TCPClient struct {
	handle   int
	blocking bool
	opts     Options
	sys      sysCalls
}

// NewTCPClient creates a disconnected client with the default options
func NewTCPClient() *TCPClient {
	return NewTCPClientWithOptions(DefaultOptions())
}

// NewTCPClientWithOptions creates a disconnected client with the given options
func NewTCPClientWithOptions(opts Options) *TCPClient {
	return newTCPClient(opts, defaultSys)
}

func newTCPClient(opts Options, sys sysCalls) *TCPClient {
	return &TCPClient{
		handle:   invalidHandle,
		blocking: true,
		opts:     opts.withDefaults(),
		sys:      sys,
	}
}

// Connect resolves host:port and connects to the first candidate that accepts
// the connection. An existing connection is closed first.
//
// It returns (true, nil) when connected and (false, nil) when the last candidate
// timed out. Resolution errors, socket creation errors and connection failures
// of the last candidate are returned as errors.
func (c *TCPClient) Connect(host string, port uint16, timeout time.Duration) (bool, error) {
	c.Close()

	candidates, err := c.opts.Resolver.Resolve(host, port)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, fmt.Errorf("%w: %s:%d: no addresses", ErrResolve, host, port)
	}

	budget := newConnectBudget(timeout, c.opts.StrictDeadline)

	var lastErr error
	timedOut := false

	for _, candidate := range candidates {
		timedOut = false
		lastErr = nil

		candidateTimeout, ok := budget.next()
		if !ok {
			Logger.Debugf("No time left to connect to %s", candidate)
			timedOut = true
			continue
		}

		connectAttempts.Inc()
		h, outcome, reason, err := c.attempt(candidate, candidateTimeout)
		if err != nil {
			return false, err
		}

		switch outcome {
		case attemptConnected:
			connectSuccess.Inc()
			c.handle = h.fd
			c.blocking = h.blocking
			Logger.Debugf("Connected to %s (blocking=%t)", candidate, h.blocking)
			return true, nil
		case attemptTimedOut:
			connectTimeouts.Inc()
			Logger.Debugf("Connect to %s timed out after %s", candidate, candidateTimeout)
			timedOut = true
		default:
			connectFailures.Inc()
			Logger.Debugf("Connect to %s failed: %v", candidate, reason)
			lastErr = reason
		}
	}

	if timedOut {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrConnect, lastErr)
}

// attempt opens, tunes and connects a socket for one candidate. The returned
// handle is only valid for attemptConnected; in every other case it has already
// been closed. A non nil error aborts Connect.
func (c *TCPClient) attempt(candidate Candidate, timeout time.Duration) (socketHandle, attemptOutcome, error, error) {
	fd, err := c.sys.socket(candidate.Family)
	if err != nil {
		return socketHandle{fd: invalidHandle}, attemptFailed, nil, fmt.Errorf("%w: %w", ErrSocketCreate, err)
	}

	h := socketHandle{fd: fd}
	h.blocking = c.trySetOptions(fd)

	err = c.sys.connect(fd, candidate.Addr)
	if err == nil {
		return h, attemptConnected, nil, nil
	}

	if !c.sys.inProgress(err) {
		c.release(&h)
		return h, attemptFailed, err, nil
	}

	res, err := waitOnSocket(c.sys, fd, timeout, false)
	switch res {
	case WaitReady:
		if err := c.sys.socketError(fd); err != nil {
			c.release(&h)
			return h, attemptFailed, err, nil
		}
		return h, attemptConnected, nil, nil
	case WaitTimeout:
		c.release(&h)
		return h, attemptTimedOut, nil, nil
	default:
		c.release(&h)
		return h, attemptFailed, err, nil
	}
}

// release closes a handle that never made it into the client
func (c *TCPClient) release(h *socketHandle) {
	if h.fd == invalidHandle {
		return
	}
	if err := c.sys.close(h.fd); err != nil {
		Logger.Debugf("Failed to close socket %d: %v", h.fd, err)
	}
	h.fd = invalidHandle
}

// Close releases the socket. It is safe to call Close on a closed or never
// connected client. Release errors are logged; Close always returns nil.
func (c *TCPClient) Close() error {
	h := socketHandle{fd: c.handle, blocking: c.blocking}
	c.release(&h)
	c.handle = invalidHandle
	return nil
}

// Send sends up to len(data) bytes with a single send call and returns the
// number of bytes sent, which may be less than len(data).
//
// In non-blocking mode Send first waits up to timeout for the socket to become
// writable and returns ErrTimeout if it does not. In blocking mode the timeout is
// not enforced.
func (c *TCPClient) Send(data []byte, timeout time.Duration) (int, error) {
	if c.handle == invalidHandle {
		return 0, ErrNotConnected
	}

	if !c.blocking {
		if res, err := waitOnSocket(c.sys, c.handle, timeout, false); res != WaitReady {
			return 0, waitFailure(res, err)
		}
	}

	n, err := c.sys.send(c.handle, data)
	if n > 0 {
		bytesSent.Add(n)
	}
	return n, err
}

// Receive reads up to len(buffer) bytes with a single receive call. A return of
// (0, nil) for a non-empty buffer means the peer closed the connection.
//
// In non-blocking mode Receive first waits up to timeout for the socket to become
// readable and returns ErrTimeout if it does not. In blocking mode the timeout is
// not enforced.
func (c *TCPClient) Receive(buffer []byte, timeout time.Duration) (int, error) {
	if c.handle == invalidHandle {
		return 0, ErrNotConnected
	}

	if !c.blocking {
		if res, err := waitOnSocket(c.sys, c.handle, timeout, true); res != WaitReady {
			return 0, waitFailure(res, err)
		}
	}

	n, err := c.sys.recv(c.handle, buffer)
	if n > 0 {
		bytesReceived.Add(n)
	}
	return n, err
}

// IsBlocking reports whether the socket stayed in blocking mode because the
// switch to non-blocking mode failed. Only meaningful while connected.
func (c *TCPClient) IsBlocking() bool {
	return c.blocking
}

// IsConnected reports whether the client owns a connected socket
func (c *TCPClient) IsConnected() bool {
	return c.handle != invalidHandle
}

// IsWouldBlock reports whether err returned by Send or Receive means the call
// would have blocked and can be retried
func (c *TCPClient) IsWouldBlock(err error) bool {
	return err != nil && c.sys.wouldBlock(err)
}

// waitFailure converts an unsuccessful wait into the error returned by Send/Receive
func waitFailure(res WaitResult, err error) error {
	if res == WaitTimeout {
		return ErrTimeout
	}
	if err == nil {
		return fmt.Errorf("socket wait failed")
	}
	return err
}
