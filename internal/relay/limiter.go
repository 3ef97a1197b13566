package relay

import (
	"sync"
	"sync/atomic"
	"time"
)

// Default admission windows.
const (
	DefaultActiveWindow = 100 * time.Millisecond
	DefaultIdleWindow   = 3000 * time.Millisecond
)

// RateLimiter decides per category whether a sample may be sent.
//
// The active category (selected by the UI) may send once per active window;
// every other category once per idle window. The first sample of a category
// is always admitted. A rejected sample does not move the window.
//
// Thread Safety: all methods are safe for concurrent use.
type RateLimiter struct {
	activeWindow int64 // ms
	idleWindow   int64 // ms

	activeFilter atomic.Int32

	mu       sync.Mutex
	lastSeen map[int32]int64
}

// NewRateLimiter creates a limiter. Non-positive windows fall back to the
// defaults.
func NewRateLimiter(activeWindow, idleWindow time.Duration) *RateLimiter {
	if activeWindow <= 0 {
		activeWindow = DefaultActiveWindow
	}
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}
	return &RateLimiter{
		activeWindow: activeWindow.Milliseconds(),
		idleWindow:   idleWindow.Milliseconds(),
		lastSeen:     make(map[int32]int64),
	}
}

// Admit reports whether a sample of category seen at nowMillis may be sent,
// recording nowMillis as the category's last admission when it may.
//
// A nowMillis earlier than the last admission gives a negative elapsed time
// and is rejected, so the recorded time never moves backwards.
func (l *RateLimiter) Admit(category int32, nowMillis int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.lastSeen[category]
	if last != 0 {
		window := l.idleWindow
		if category == l.activeFilter.Load() {
			window = l.activeWindow
		}
		if nowMillis-last < window {
			return false
		}
	}

	l.lastSeen[category] = nowMillis
	return true
}

// SetActiveFilter selects the category that gets the short window.
// It takes effect from the next Admit call.
func (l *RateLimiter) SetActiveFilter(category int32) {
	l.activeFilter.Store(category)
}

// ActiveFilter returns the current active category.
func (l *RateLimiter) ActiveFilter() int32 {
	return l.activeFilter.Load()
}

// LastSeen returns the last admission time of category, or 0 if none.
func (l *RateLimiter) LastSeen(category int32) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeen[category]
}
