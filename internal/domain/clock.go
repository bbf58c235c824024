package domain

import (
	"sync"
	"time"
)

// Clock is the wall-clock time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// MonotonicClock never returns the same or an earlier instant twice.
// Ties and backwards steps are bumped by one microsecond.
type MonotonicClock struct {
	src  Clock
	mu   sync.Mutex
	last time.Time
}

// NewMonotonicClock wraps src (time.Now when nil).
func NewMonotonicClock(src Clock) *MonotonicClock {
	if src == nil {
		src = ClockFunc(time.Now)
	}
	return &MonotonicClock{src: src}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.src.Now()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}
