package com

import "sync/atomic"

// Counter is an atomic, concurrency-safe running total that additionally
// tracks a resettable window: Val/Reset report progress since the last
// reset (used for periodic "N rows/s" logging), while Total reports the
// lifetime sum regardless of resets.
type Counter struct {
	val   atomic.Uint64
	total atomic.Uint64
}

// Add adds delta to both the current window and the lifetime total.
func (c *Counter) Add(delta uint64) {
	c.val.Add(delta)
	c.total.Add(delta)
}

// Val returns the current window's value without resetting it.
func (c *Counter) Val() uint64 {
	return c.val.Load()
}

// Reset returns the current window's value and zeroes it; Total is
// unaffected.
func (c *Counter) Reset() uint64 {
	return c.val.Swap(0)
}

// Total returns the lifetime sum of every Add call.
func (c *Counter) Total() uint64 {
	return c.total.Load()
}
