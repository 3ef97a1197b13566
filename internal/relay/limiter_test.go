package relay

import (
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Admission Tests
// =============================================================================

func TestRateLimiter_Scenario(t *testing.T) {
	l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)

	steps := []struct {
		name     string
		filter   *int32
		category int32
		now      int64
		want     bool
	}{
		{name: "first ever sample", category: 1, now: 1000, want: true},
		{name: "active inside window", filter: ptr(int32(1)), category: 1, now: 1050, want: false},
		{name: "active after window", category: 1, now: 1200, want: true},
		{name: "first sample of second category", category: 2, now: 1200, want: true},
		{name: "inactive inside window", category: 2, now: 3000, want: false},
		{name: "inactive after window", category: 2, now: 4201, want: true},
	}

	for _, s := range steps {
		if s.filter != nil {
			l.SetActiveFilter(*s.filter)
		}
		if got := l.Admit(s.category, s.now); got != s.want {
			t.Errorf("%s: Admit(%d, %d) = %v, want %v", s.name, s.category, s.now, got, s.want)
		}
	}
}

func TestRateLimiter_Windows(t *testing.T) {
	tests := []struct {
		name     string
		active   int32
		category int32
		elapsed  int64
		want     bool
	}{
		{"active just inside", 5, 5, 99, false},
		{"active at boundary", 5, 5, 100, true},
		{"inactive just inside", 5, 6, 2999, false},
		{"inactive at boundary", 5, 6, 3000, true},
		{"inactive well after", 5, 6, 60000, true},
		{"same timestamp", 5, 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)
			l.SetActiveFilter(tt.active)

			if !l.Admit(tt.category, 10_000) {
				t.Fatal("first Admit() = false, want true")
			}
			if got := l.Admit(tt.category, 10_000+tt.elapsed); got != tt.want {
				t.Errorf("Admit() after %dms = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestRateLimiter_FirstSampleAnyTimestamp(t *testing.T) {
	for _, now := range []int64{-5, 1, 1 << 40} {
		l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)
		if !l.Admit(3, now) {
			t.Errorf("first Admit(3, %d) = false, want true", now)
		}
	}
}

func TestRateLimiter_FilterSwitchReclassifies(t *testing.T) {
	l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)
	l.SetActiveFilter(1)

	l.Admit(2, 1000)
	// Inactive: 500ms is too soon.
	if l.Admit(2, 1500) {
		t.Fatal("Admit(2, 1500) = true while inactive, want false")
	}

	l.SetActiveFilter(2)
	if got := l.ActiveFilter(); got != 2 {
		t.Fatalf("ActiveFilter() = %d, want 2", got)
	}
	// Active now: the same 500ms gap is enough.
	if !l.Admit(2, 1500) {
		t.Error("Admit(2, 1500) = false after switching filter, want true")
	}
}

func TestRateLimiter_RejectDoesNotMoveWindow(t *testing.T) {
	l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)
	l.SetActiveFilter(1)

	l.Admit(1, 1000)
	l.Admit(1, 1050)

	if got := l.LastSeen(1); got != 1000 {
		t.Errorf("LastSeen(1) = %d after reject, want 1000", got)
	}
	if !l.Admit(1, 1100) {
		t.Error("Admit(1, 1100) = false, want true (window measured from 1000)")
	}
}

func TestRateLimiter_LastSeenNeverDecreases(t *testing.T) {
	l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)

	l.Admit(4, 10_000)
	if l.Admit(4, 2_000) {
		t.Error("Admit() with earlier timestamp = true, want false")
	}
	if got := l.LastSeen(4); got != 10_000 {
		t.Errorf("LastSeen(4) = %d, want 10000", got)
	}
}

func TestRateLimiter_CustomWindows(t *testing.T) {
	l := NewRateLimiter(10*time.Millisecond, 20*time.Millisecond)
	l.SetActiveFilter(1)

	l.Admit(1, 100)
	l.Admit(2, 100)

	if !l.Admit(1, 110) {
		t.Error("active category rejected after custom 10ms window")
	}
	if l.Admit(2, 110) {
		t.Error("inactive category admitted inside custom 20ms window")
	}
	if !l.Admit(2, 120) {
		t.Error("inactive category rejected after custom 20ms window")
	}
}

func TestRateLimiter_DefaultsForNonPositive(t *testing.T) {
	l := NewRateLimiter(0, -1)

	if l.activeWindow != 100 || l.idleWindow != 3000 {
		t.Errorf("windows = %d/%d, want 100/3000", l.activeWindow, l.idleWindow)
	}
}

func TestRateLimiter_ConcurrentAdmitSingleWinner(t *testing.T) {
	l := NewRateLimiter(DefaultActiveWindow, DefaultIdleWindow)
	l.Admit(9, 1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(9, 5000) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("%d concurrent admissions at the same instant, want 1", admitted)
	}
}

func ptr[T any](v T) *T { return &v }
