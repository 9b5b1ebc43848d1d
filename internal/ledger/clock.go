package ledger

import "sync/atomic"

// Clock is the monotonic logical clock stamping sync log entries.
//
// All audit ordering uses seq numbers from this clock, never wall time:
// wall clocks on the capture machines are not trusted to agree, and
// logical stamps keep the trail replayable in a fixed order.
//
// Thread-safety: safe for concurrent use (atomic operations); partition
// commits on different keys may stamp entries concurrently.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a persisted position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
// Each call returns a unique, strictly increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
