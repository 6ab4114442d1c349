package testutil

import (
	"sync"
	"time"
)

// Reference is the fixed "now" used by tests that derive ages and
// departure windows.
var Reference = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// WallClock is a settable wall clock for code that stamps artifacts with
// the current time.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type WallClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewWallClock returns a clock frozen at start. Each call to Now advances
// it by step; a zero step keeps it frozen.
func NewWallClock(start time.Time, step time.Duration) *WallClock {
	return &WallClock{now: start, step: step}
}

// Now returns the current reading and advances the clock.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Set moves the clock to t.
func (c *WallClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// DaysAgo returns Reference minus n days.
func DaysAgo(n int) time.Time {
	return Reference.AddDate(0, 0, -n)
}
