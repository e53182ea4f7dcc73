package judge

import "time"

// Clock supplies wall-clock time to the runtime. Production code uses
// SystemClock; tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Budget decides whether time-bounded work must stop. epoch is when the
// process started, kickoff is when the current operation started.
type Budget interface {
	Over(epoch, kickoff time.Time) bool
}

// Lifetime is a Budget bounded by a process lifetime and a per-operation
// timeout. A zero duration disables that bound.
type Lifetime struct {
	Lifetime time.Duration
	Timeout  time.Duration
	Clock    Clock
}

// Over reports whether either bound has passed.
func (l Lifetime) Over(epoch, kickoff time.Time) bool {
	c := l.Clock
	if c == nil {
		c = SystemClock{}
	}
	now := c.Now()
	if l.Lifetime > 0 && now.Sub(epoch) > l.Lifetime {
		return true
	}
	if l.Timeout > 0 && now.Sub(kickoff) > l.Timeout {
		return true
	}
	return false
}

// Unbounded never runs out.
type Unbounded struct{}

// Over always returns false.
func (Unbounded) Over(epoch, kickoff time.Time) bool { return false }
