// Package rpc provides the communication layer between clients and cluster nodes.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared across the module.
//
//   - transport: Transport interfaces and the TCP implementation built on
//     lib/socket, which frames requests by shard and request ID.
package rpc
