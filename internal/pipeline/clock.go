package pipeline

import "sync/atomic"

// Clock stamps runs and snapshot commits with strictly increasing seq
// numbers. "Latest snapshot" means highest seq, never newest wall time.
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose next tick is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Observe moves the clock forward to seq if it is behind. A clock never
// moves backwards.
func (c *Clock) Observe(seq int64) {
	for {
		cur := c.seq.Load()
		if seq <= cur || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
