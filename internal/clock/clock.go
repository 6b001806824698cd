// Package clock provides the ledger time source consumed by the timelock
// engine. Time is whole seconds since the Unix epoch and never decreases.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Clock reports the current ledger time in seconds.
type Clock interface {
	Now() uint64
}

// System is a wall-clock source clamped to be non-decreasing, so a host clock
// step backwards never makes a ready operation look pending again.
//
// Thread-safety: System is safe for concurrent use (atomic operations).
type System struct {
	last atomic.Uint64
	now  func() time.Time
}

// NewSystem creates a clock backed by time.Now.
func NewSystem() *System {
	return &System{now: time.Now}
}

// Now returns the wall clock in seconds, or the last value returned if the
// wall clock has moved backwards since.
func (c *System) Now() uint64 {
	sec := c.now().Unix()
	if sec < 0 {
		sec = 0
	}
	t := uint64(sec)
	for {
		last := c.last.Load()
		if t <= last {
			return last
		}
		if c.last.CompareAndSwap(last, t) {
			return t
		}
	}
}

// ErrRewind is returned when a Manual clock is asked to move backwards.
var ErrRewind = errors.New("clock cannot move backwards")

// Manual is a clock that only moves when told to. It backs tests and the
// development server.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual creates a manual clock reading start.
func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

// Now returns the current reading.
func (c *Manual) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Setting the current value again is allowed.
func (c *Manual) Set(t uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.now {
		return fmt.Errorf("%w: %d < %d", ErrRewind, t, c.now)
	}
	c.now = t
	return nil
}

// Advance moves the clock forward by d seconds, saturating at the maximum
// representable time, and returns the new reading.
func (c *Manual) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now > ^uint64(0)-d {
		c.now = ^uint64(0)
	} else {
		c.now += d
	}
	return c.now
}
