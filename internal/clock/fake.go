package clock

import "time"

// FakeClock is a manually advanced Clock for tests. Not safe for
// concurrent use; tests drive it from a single goroutine.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time { return c.now }

// Advance moves the clock forward. Negative durations move it back,
// which expiry tests rely on.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
