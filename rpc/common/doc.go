// Package common provides the configuration structures and logging utilities
// shared by the socket, transport and command packages.
//
// The package focuses on:
//   - Configuration structures for node clients and node servers
//   - Conversion of the configuration into socket options
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - ClientConfig: Configuration for clients reaching the cluster nodes,
//     controlling endpoints, connect and request timeouts, retries and
//     the number of sockets per node.
//
//   - ServerConfig: Configuration for a node server, including the listen
//     endpoint, timeouts and the per-connection worker limit.
//
//   - SocketConf: Socket tuning (buffer size, keep-alive) shared by both sides.
//     SocketConf.Options converts it into lib/socket options.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger factory while providing consistent formatting across the application.
package common
