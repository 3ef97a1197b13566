package dispatch

import "errors"

var (
	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("dispatch: queue full")

	// ErrClosed is returned by Enqueue after Shutdown has begun.
	ErrClosed = errors.New("dispatch: dispatcher closed")

	// ErrNotStarted is returned by Shutdown on a dispatcher that was never started.
	ErrNotStarted = errors.New("dispatch: dispatcher not started")
)
