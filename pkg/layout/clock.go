package layout

import (
	"sync/atomic"
	"time"
)

// Clock is the single time source for integration and drift. Values are
// elapsed time since an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the monotonic wall clock.
type SystemClock struct {
	origin time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

func (c *SystemClock) Now() time.Duration { return time.Since(c.origin) }

// ManualClock only moves when told to. Safe to advance from one goroutine
// while another reads it.
type ManualClock struct {
	now atomic.Int64
}

func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) Now() time.Duration { return time.Duration(c.now.Load()) }

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	return time.Duration(c.now.Add(int64(d)))
}

func (c *ManualClock) Set(t time.Duration) { c.now.Store(int64(t)) }
