// Package cmd implements the command-line interface of dsock. It provides
// commands for checking and using the connections to cluster nodes.
//
// The package is organized into several subpackages:
//
//   - probe: Connects to every endpoint and reports reachability, blocking mode and latency
//   - send: Sends a single framed request to the cluster and prints the response
//   - serve: Starts an echo node that answers framed requests
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dsock -help for a list of all commands.
package cmd
