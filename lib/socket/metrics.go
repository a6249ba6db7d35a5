package socket

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	socketMetrics = metrics.NewSet()

	connectAttempts = socketMetrics.NewCounter("dsock_connect_attempts_total")
	connectSuccess  = socketMetrics.NewCounter("dsock_connect_success_total")
	connectTimeouts = socketMetrics.NewCounter("dsock_connect_timeouts_total")
	connectFailures = socketMetrics.NewCounter("dsock_connect_failures_total")
	bytesSent       = socketMetrics.NewCounter("dsock_bytes_sent_total")
	bytesReceived   = socketMetrics.NewCounter("dsock_bytes_received_total")
)

// WriteMetrics writes the socket counters of this process in Prometheus text format
func WriteMetrics(w io.Writer) {
	socketMetrics.WritePrometheus(w)
}
