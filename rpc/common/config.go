package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dsock/lib/socket"
)

// --------------------------------------------------------------------------
// Socket configuration (shared by client and server)
// --------------------------------------------------------------------------

// SocketConf holds the tuning applied to every node socket
type SocketConf struct {
	// BufferSize is the send and receive buffer size in bytes
	BufferSize int
	// KeepAliveIdleSec is the idle time before the first keep-alive probe
	KeepAliveIdleSec int
	// KeepAliveIntervalSec is the time between keep-alive probes
	KeepAliveIntervalSec int
	// StrictDeadline makes the connect timeout a budget shared by all resolved addresses
	StrictDeadline bool
}

// Options converts the configuration into socket options. Unset values fall back
// to the socket defaults.
func (c SocketConf) Options() socket.Options {
	opts := socket.DefaultOptions()
	if c.BufferSize > 0 {
		opts.BufferSize = c.BufferSize
	}
	if c.KeepAliveIdleSec > 0 {
		opts.KeepAliveIdle = time.Duration(c.KeepAliveIdleSec) * time.Second
	}
	if c.KeepAliveIntervalSec > 0 {
		opts.KeepAliveInterval = time.Duration(c.KeepAliveIntervalSec) * time.Second
	}
	opts.StrictDeadline = c.StrictDeadline
	return opts
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of a node server
type ServerConfig struct {
	// Endpoint the server listens on (host:port)
	Endpoint string

	// TimeoutSecond bounds reading a request and writing its response
	TimeoutSecond int64

	// MaxWorkersPerConn limits the requests processed in parallel per connection
	MaxWorkersPerConn int

	// Socket tuning for accepted connections
	Socket SocketConf

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("Node Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(int(math.Max(1, float64(c.MaxWorkersPerConn)))))

	// Socket settings
	addSection("Socket")
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.Socket.Options().BufferSize))
	addField("Keep-Alive Idle", c.Socket.Options().KeepAliveIdle.String())

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a client reaching the cluster nodes
type ClientConfig struct {
	// Endpoints are the cluster nodes (host:port)
	Endpoints []string
	// TimeoutSecond bounds a single request (0 = no bound)
	TimeoutSecond int
	// ConnectTimeoutMs bounds establishing a node connection (negative = no bound)
	ConnectTimeoutMs int
	// RetryCount is the number of attempts per request
	RetryCount int
	// ConnectionsPerEndpoint is the number of sockets opened per node
	ConnectionsPerEndpoint int
	// Socket tuning for node connections
	Socket SocketConf
}

// ConnectTimeout returns the connect timeout as a duration
func (c *ClientConfig) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutMs < 0 {
		return socket.InfiniteTimeout
	}
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the request timeout as a duration, 0 if unbounded
func (c *ClientConfig) RequestTimeout() time.Duration {
	if c.TimeoutSecond <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connect Timeout", fmt.Sprintf("%d ms", c.ConnectTimeoutMs))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Socket settings
	opts := c.Socket.Options()
	addSection("Socket")
	addField("Buffer Size", fmt.Sprintf("%d bytes", opts.BufferSize))
	addField("Keep-Alive Idle", opts.KeepAliveIdle.String())
	addField("Keep-Alive Interval", opts.KeepAliveInterval.String())
	addField("Strict Deadline", strconv.FormatBool(opts.StrictDeadline))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
