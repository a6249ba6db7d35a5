// Package socket implements the low-level TCP client connection primitive used by
// the node transport to reach a single cluster node. It works directly on the OS socket
// descriptor instead of net.Conn, which gives it full control over the connection
// lifecycle and the socket options applied before the connection is established.
//
// The package focuses on:
//   - Resolving a host/port pair into an ordered list of candidate endpoints
//   - Connecting to the first reachable candidate within a caller supplied timeout
//   - Tuning the socket for request/response traffic (TCP_NODELAY, buffers, keep-alive)
//   - Blocking-with-timeout Send and Receive on top of a non-blocking descriptor
//
// Key Components:
//
//   - TCPClient: Exclusive owner of one socket descriptor. Connect tries every
//     candidate returned by the resolver in order and keeps the first one that
//     connects. Failed candidates are closed before the next one is tried, so no
//     half-open descriptors are ever left behind.
//
//   - IResolver: Turns a host/port pair into candidates. The default resolver uses
//     the system resolver and keeps its ordering. Cluster clients can inject their
//     own resolver (e.g. for static node lists or service discovery).
//
//   - Readiness waiter: poll(2) based wait for read or write readiness with a
//     timeout. It is used to bound a pending connect and every Send/Receive while
//     the descriptor is in non-blocking mode.
//
// Timeout Semantics:
//
//	Connect reports a timeout as (false, nil) and never as an error. This lets
//	callers tell "no node reachable in time" apart from configuration or DNS
//	errors, which are reported as errors wrapping ErrResolve, ErrSocketCreate or
//	ErrConnect. By default every candidate's pending connect may use the whole
//	timeout. Options.StrictDeadline turns the timeout into a single budget shared
//	by all candidates.
//
//	Send and Receive perform exactly one transfer call and return its result
//	unchanged. A partial transfer is not an error and is not retried; looping
//	until a buffer is fully transferred is the caller's job.
//
// Thread Safety:
//
//	A TCPClient is not safe for concurrent use. Connect, Send, Receive and Close
//	all use the same descriptor without locking; callers sharing a client between
//	goroutines must synchronize access themselves.
package socket
