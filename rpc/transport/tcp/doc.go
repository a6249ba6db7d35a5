// Package tcp implements the TCP transport between clients and cluster nodes.
//
// The client side is built on lib/socket: every node connection is a
// socket.TCPClient that is connected with a bounded connect timeout, falls back
// across all resolved addresses of a node and is tuned (buffer sizes, TCP_NODELAY,
// keep-alive) before use. Because socket.TCPClient.Send and Receive transfer at
// most one chunk per call, the transport loops over partial transfers until a
// whole frame is written or read, bounded by the request timeout.
//
// Requests are framed as:
//
//	8 bytes  shard ID    (uint64, big endian)
//	8 bytes  request ID  (uint64, big endian)
//	4 bytes  length      (uint32, big endian)
//	N bytes  payload
//
// Key Components:
//
//   - clientTransport: Round-robin over ConnectionsPerEndpoint sockets per node.
//     Requests on a single socket are processed in lock-step, a failed request
//     closes the socket and is retried with exponential backoff on the next one.
//     Closed sockets reconnect lazily.
//
//   - ServerTransport: Accepts connections with the standard net package and
//     processes up to MaxWorkersPerConn requests per connection in parallel
//     using pooled read buffers.
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized for specific use cases.
package tcp
