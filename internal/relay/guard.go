package relay

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultConnectTimeout bounds the wait for a handshake in progress.
const DefaultConnectTimeout = 15 * time.Second

// Channel is the transport to the paired device.
//
// Connect starts a handshake in the background. BlockingConnect waits for
// one (starting it if needed) and returns nil once connected; a timeout
// error should match context.DeadlineExceeded. Put delivers one payload
// and reports completion exactly once on the returned channel.
type Channel interface {
	Connect()
	IsConnected() bool
	IsConnecting() bool
	BlockingConnect(timeout time.Duration) error
	Put(path string, data []byte, urgent bool) <-chan error
}

// ConnectionGuard decides whether a send may go ahead.
//
// Only a handshake that is already in progress is waited for. A channel that
// is fully disconnected counts as ready and the put itself fails, unless
// reconnectWhenDisconnected is set.
type ConnectionGuard struct {
	channel                   Channel
	timeout                   time.Duration
	reconnectWhenDisconnected bool
}

// NewConnectionGuard creates a guard over ch. A non-positive timeout falls
// back to DefaultConnectTimeout.
func NewConnectionGuard(ch Channel, timeout time.Duration, reconnectWhenDisconnected bool) *ConnectionGuard {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &ConnectionGuard{
		channel:                   ch,
		timeout:                   timeout,
		reconnectWhenDisconnected: reconnectWhenDisconnected,
	}
}

// EnsureReady returns nil when the send may proceed.
//
// It blocks for at most the guard's timeout, and only while the channel is
// mid-handshake. Failures wrap ErrConnectTimeout or ErrConnectFailed.
func (g *ConnectionGuard) EnsureReady() error {
	if !g.channel.IsConnecting() {
		if !g.reconnectWhenDisconnected || g.channel.IsConnected() {
			return nil
		}
	}

	err := g.channel.BlockingConnect(g.timeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %v: %w", ErrConnectTimeout, g.timeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
}
