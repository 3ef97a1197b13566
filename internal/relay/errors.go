package relay

import "errors"

// Readiness failures. A send that hits one of these is dropped.
var (
	// ErrConnectTimeout means a handshake in progress did not finish in time.
	ErrConnectTimeout = errors.New("relay: connect timed out")

	// ErrConnectFailed means the channel reported a failed handshake.
	ErrConnectFailed = errors.New("relay: connect failed")
)
