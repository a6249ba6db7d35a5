package socket

import "time"

// Defaults for the socket tuning
const (
	DefaultBufferSize        = 64 * 1024
	DefaultKeepAliveIdle     = 60 * time.Second
	DefaultKeepAliveInterval = 1 * time.Second
)

// Options configures a TCPClient
type Options struct {
	// BufferSize is applied to SO_SNDBUF and SO_RCVBUF (bytes)
	BufferSize int
	// KeepAliveIdle is the idle time before the first keep-alive probe
	KeepAliveIdle time.Duration
	// KeepAliveInterval is the time between keep-alive probes
	KeepAliveInterval time.Duration
	// StrictDeadline makes the Connect timeout a single budget for all candidates.
	// If false, every candidate's pending connect may use the full timeout.
	StrictDeadline bool
	// Resolver resolves hosts into candidates, nil uses the system resolver
	Resolver IResolver
}

// DefaultOptions returns the default socket options
func DefaultOptions() Options {
	return Options{
		BufferSize:        DefaultBufferSize,
		KeepAliveIdle:     DefaultKeepAliveIdle,
		KeepAliveInterval: DefaultKeepAliveInterval,
	}
}

// withDefaults replaces unset values with their defaults
func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.KeepAliveIdle <= 0 {
		o.KeepAliveIdle = DefaultKeepAliveIdle
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if o.Resolver == nil {
		o.Resolver = NewNetResolver()
	}
	return o
}

// trySetOptions tunes a freshly opened socket. Every step is best effort; only a
// failure to enable keep-alive skips the keep-alive sub options. It returns whether
// the socket is still in blocking mode.
func (c *TCPClient) trySetOptions(fd int) (blocking bool) {
	c.trySetOpt(fd, optSendBuffer, c.opts.BufferSize)
	c.trySetOpt(fd, optRecvBuffer, c.opts.BufferSize)
	c.trySetOpt(fd, optNoDelay, 1)
	c.trySetOpt(fd, optOOBInline, 1)

	if err := c.sys.setNonblock(fd); err != nil {
		Logger.Debugf("Failed to switch socket %d to non-blocking mode, staying in blocking mode: %v", fd, err)
		blocking = true
	}

	if err := c.sys.setOpt(fd, optKeepAlive, 1); err != nil {
		// keep-alive parameters are meaningless without keep-alive
		Logger.Debugf("Failed to enable keep-alive on socket %d: %v", fd, err)
		return blocking
	}

	c.trySetOpt(fd, optKeepIdle, seconds(c.opts.KeepAliveIdle))
	c.trySetOpt(fd, optKeepInterval, seconds(c.opts.KeepAliveInterval))

	return blocking
}

func (c *TCPClient) trySetOpt(fd int, opt sockOpt, value int) {
	if err := c.sys.setOpt(fd, opt, value); err != nil {
		Logger.Debugf("Failed to set %s=%d on socket %d: %v", opt, value, fd, err)
	}
}

// seconds converts d to whole seconds, at least one
func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
