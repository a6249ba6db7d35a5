package tcp

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dsock/lib/socket"
)

// errRequestTimeout is returned when a request exceeds its deadline
var errRequestTimeout = errors.New("request timed out")

// nodeStream adapts a socket.TCPClient to io.Reader and io.Writer. Send and Receive
// may transfer fewer bytes than requested, the stream loops until the request
// deadline is reached.
type nodeStream struct {
	client   *socket.TCPClient
	deadline time.Time // zero means no deadline
}

// remaining returns the time left until the deadline
func (s *nodeStream) remaining() (time.Duration, error) {
	if s.deadline.IsZero() {
		return socket.InfiniteTimeout, nil
	}
	left := time.Until(s.deadline)
	if left <= 0 {
		return 0, errRequestTimeout
	}
	return left, nil
}

// Write sends all of p or returns the first error
func (s *nodeStream) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		timeout, err := s.remaining()
		if err != nil {
			return written, err
		}

		n, err := s.client.Send(p[written:], timeout)
		written += n
		if err != nil {
			if s.client.IsWouldBlock(err) {
				continue
			}
			return written, s.wrap(err)
		}
	}
	return written, nil
}

// Read receives at least one byte into p. A closed peer is reported as io.EOF.
func (s *nodeStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		timeout, err := s.remaining()
		if err != nil {
			return 0, err
		}

		n, err := s.client.Receive(p, timeout)
		if err != nil {
			if s.client.IsWouldBlock(err) {
				continue
			}
			return n, s.wrap(err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (s *nodeStream) wrap(err error) error {
	if errors.Is(err, socket.ErrTimeout) {
		return fmt.Errorf("%w: %w", errRequestTimeout, err)
	}
	return err
}
