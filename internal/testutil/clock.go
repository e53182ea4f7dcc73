package testutil

import (
	"sync"
	"time"
)

// Epoch is the fixed start time used across tests.
var Epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// ManualClock is a clock that only moves when told to.
//
// Each call to Now returns the current time and then advances it by the
// configured tick, so budgets measured in calls are deterministic.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu   sync.Mutex
	now  time.Time
	tick time.Duration
}

// NewManualClock creates a clock at start that advances by tick on every
// call to Now. A zero tick freezes the clock.
func NewManualClock(start time.Time, tick time.Duration) *ManualClock {
	return &ManualClock{now: start, tick: tick}
}

// Now returns the current time, then advances by the tick.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.tick)
	return t
}

// Peek returns the current time without advancing.
func (c *ManualClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
