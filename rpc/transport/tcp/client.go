package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dsock/lib/socket"
	"github.com/ValentinKolb/dsock/rpc/common"
	"github.com/ValentinKolb/dsock/rpc/transport"
	"github.com/cenkalti/backoff/v5"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/tcp")

var (
	errNoConnections   = errors.New("no active connections available")
	errConnectTimedOut = errors.New("connect timed out")
)

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// endpointStats holds the atomic request counters of one endpoint
type endpointStats struct {
	successes  atomic.Uint64
	failures   atomic.Uint64
	reconnects atomic.Uint64
}

// nodeConnection is a single socket to a cluster node. Requests on one
// connection are processed in lock-step.
type nodeConnection struct {
	endpoint       string
	host           string
	port           uint16
	connectTimeout time.Duration
	requestTimeout time.Duration
	mu             sync.Mutex // Protects the socket and the buffer
	client         *socket.TCPClient
	buf            []byte
	stats          *endpointStats
}

// clientTransport implements transport.IRPCClientTransport on top of lib/socket
type clientTransport struct {
	config        common.ClientConfig
	connections   []*nodeConnection
	connectionsMu sync.RWMutex
	stats         *xsync.MapOf[string, *endpointStats]
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
}

// -----------------------------------------------------------
// Transport Factory Method
// -----------------------------------------------------------

// NewTCPClientTransport creates a new TCP client transport
func NewTCPClientTransport() transport.IRPCClientTransport {
	return &clientTransport{
		stats:         xsync.NewMapOf[string, *endpointStats](),
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()
	t.config = config

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.ConnectionsPerEndpoint
	}

	connections := make([]*nodeConnection, 0, len(config.Endpoints)*connectionsPerEP)
	opts := config.Socket.Options()

	for _, endpoint := range config.Endpoints {
		host, port, err := SplitEndpoint(endpoint)
		if err != nil {
			closeAll(connections)
			return err
		}

		stats, _ := t.stats.LoadOrCompute(endpoint, func() *endpointStats {
			return &endpointStats{}
		})

		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			conn := &nodeConnection{
				endpoint:       endpoint,
				host:           host,
				port:           port,
				connectTimeout: config.ConnectTimeout(),
				requestTimeout: config.RequestTimeout(),
				client:         socket.NewTCPClientWithOptions(opts),
				stats:          stats,
			}

			if err := conn.connect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, conn)
			Logger.Debugf("Connected to %s (connection %d/%d, blocking=%t)", endpoint, i+1, connectionsPerEP, conn.client.IsBlocking())
		}
	}

	// Check if we have at least one connection
	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints",
		len(connections), len(config.Endpoints)*connectionsPerEP, len(config.Endpoints))

	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	// Generate a unique request ID
	requestID := atomic.AddUint64(&t.nextRequestID, 1)

	// We always try at least once, and up to RetryCount times
	maxTries := t.config.RetryCount
	if maxTries < 1 {
		maxTries = 1
	}

	attempts := 0
	operation := func() ([]byte, error) {
		attempts++

		conn := t.getNextConnection()
		if conn == nil {
			return nil, backoff.Permanent(errNoConnections)
		}

		data, err := conn.roundTrip(shardId, requestID, req)
		if err != nil {
			conn.stats.failures.Add(1)
			Logger.Debugf("Request %d attempt %d/%d to %s failed: %v", requestID, attempts, maxTries, conn.endpoint, err)
			return nil, err
		}

		conn.stats.successes.Add(1)
		return data, nil
	}

	// Exponential backoff with a small random jitter (+-10%)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.RandomizationFactor = 0.1
	b.Multiplier = 2

	resp, err = backoff.Retry(context.Background(), operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxTries)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request after %d attempts: %w", attempts, err)
	}
	return resp, nil
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

func (t *clientTransport) Stats() []transport.EndpointStats {
	result := make([]transport.EndpointStats, 0, t.stats.Size())
	t.stats.Range(func(endpoint string, s *endpointStats) bool {
		result = append(result, transport.EndpointStats{
			Endpoint:   endpoint,
			Successes:  s.successes.Load(),
			Failures:   s.failures.Load(),
			Reconnects: s.reconnects.Load(),
		})
		return true
	})
	slices.SortFunc(result, func(a, b transport.EndpointStats) int {
		return strings.Compare(a.Endpoint, b.Endpoint)
	})
	return result
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *nodeConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	closeAll(t.connections)
	t.connections = nil
}

func closeAll(connections []*nodeConnection) {
	for _, conn := range connections {
		conn.mu.Lock()
		conn.client.Close()
		conn.mu.Unlock()
	}
}

// connect establishes the socket, the caller must hold c.mu or own c exclusively
func (c *nodeConnection) connect() error {
	ok, err := c.client.Connect(c.host, c.port, c.connectTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s after %s", errConnectTimedOut, c.endpoint, c.connectTimeout)
	}
	return nil
}

// roundTrip writes one request frame and reads the matching response frame.
// A failed round trip leaves the connection closed, the next call reconnects.
func (c *nodeConnection) roundTrip(shardID, requestID uint64, req []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.client.IsConnected() {
		c.stats.reconnects.Add(1)
		if err := c.connect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect to %s: %w", c.endpoint, err)
		}
		Logger.Infof("Reconnected to %s", c.endpoint)
	}

	stream := &nodeStream{client: c.client}
	if c.requestTimeout > 0 {
		stream.deadline = time.Now().Add(c.requestTimeout)
	}

	resp, err := c.exchange(stream, shardID, requestID, req)
	if err != nil {
		// the stream position is unknown after a failed exchange
		c.client.Close()
		return nil, err
	}
	return resp, nil
}

func (c *nodeConnection) exchange(stream *nodeStream, shardID, requestID uint64, req []byte) ([]byte, error) {
	if err := writeFrame(stream, shardID, requestID, req); err != nil {
		return nil, fmt.Errorf("error writing request: %w", err)
	}

	_, respID, data, err := readFrame(stream, c.buf)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if respID != requestID {
		return nil, fmt.Errorf("received response for request %d while waiting for %d", respID, requestID)
	}

	// keep the larger buffer for the next response
	if cap(data) > len(c.buf) {
		c.buf = data[:cap(data)]
	}

	resp := make([]byte, len(data))
	copy(resp, data)
	return resp, nil
}

// SplitEndpoint splits host:port into its host and numeric port
func SplitEndpoint(endpoint string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in endpoint %q: %w", endpoint, err)
	}
	return host, uint16(port), nil
}
