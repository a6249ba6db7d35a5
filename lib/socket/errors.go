package socket

import "errors"

var (
	// ErrResolve is returned by Connect when the host could not be resolved.
	// No candidate is attempted in this case.
	ErrResolve = errors.New("can not resolve host")

	// ErrSocketCreate is returned by Connect when a socket could not be created.
	// This is a local resource problem, so no further candidate is attempted.
	ErrSocketCreate = errors.New("socket creation failed")

	// ErrConnect is returned by Connect when every candidate failed and the last
	// failure was not a timeout. The error message carries the last failure reason.
	ErrConnect = errors.New("failed to establish connection with the host")

	// ErrTimeout is returned by Send and Receive when the descriptor did not become
	// ready within the given timeout. No data was transferred.
	ErrTimeout = errors.New("socket wait timed out")

	// ErrNotConnected is returned by Send and Receive on a client without a connection.
	ErrNotConnected = errors.New("socket is not connected")

	// ErrUnsupportedPlatform is returned by every socket operation on platforms
	// without a native implementation.
	ErrUnsupportedPlatform = errors.New("socket operations are not supported on this platform")
)
