package socket

import "net/netip"

// Family is the address family of a candidate endpoint
type Family int

const (
	FamilyIPv4 Family = iota + 1
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// sockOpt names the socket options applied during tuning. The platform
// implementation maps them to the native level/option pairs.
type sockOpt int

const (
	optSendBuffer sockOpt = iota
	optRecvBuffer
	optNoDelay
	optOOBInline
	optKeepAlive
	optKeepIdle
	optKeepInterval
)

func (o sockOpt) String() string {
	switch o {
	case optSendBuffer:
		return "SO_SNDBUF"
	case optRecvBuffer:
		return "SO_RCVBUF"
	case optNoDelay:
		return "TCP_NODELAY"
	case optOOBInline:
		return "SO_OOBINLINE"
	case optKeepAlive:
		return "SO_KEEPALIVE"
	case optKeepIdle:
		return "TCP_KEEPIDLE"
	case optKeepInterval:
		return "TCP_KEEPINTVL"
	default:
		return "unknown"
	}
}

// sysCalls is the table of OS calls used by the TCPClient. The default table
// (defaultSys) talks to the kernel; tests swap in a fake.
type sysCalls interface {
	// socket opens a stream socket using the TCP protocol for the given family
	socket(family Family) (int, error)
	// connect starts connecting fd to addr
	connect(fd int, addr netip.AddrPort) error
	// close releases fd
	close(fd int) error
	// setOpt sets an integer socket option
	setOpt(fd int, opt sockOpt, value int) error
	// setNonblock switches fd to non-blocking mode
	setNonblock(fd int) error
	// socketError returns the pending error of fd (SO_ERROR), nil if there is none
	socketError(fd int) error
	// poll waits up to timeoutMs (-1 = no bound) for fd to become readable or
	// writable. It returns false and no error on timeout.
	poll(fd int, read bool, timeoutMs int) (bool, error)
	// send performs one send call
	send(fd int, p []byte) (int, error)
	// recv performs one receive call
	recv(fd int, p []byte) (int, error)
	// inProgress reports whether a connect error means the connect is still pending
	inProgress(err error) bool
	// wouldBlock reports whether a transfer error means the call would have blocked
	wouldBlock(err error) bool
	// interrupted reports whether err is an interrupted system call
	interrupted(err error) bool
}
