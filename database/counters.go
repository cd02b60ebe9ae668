package database

import "sync/atomic"

// Counters are the atomic connection-lifecycle counters a Context exposes
// for observability (SPEC_FULL.md §4.6). All fields are safe for
// concurrent use without external locking.
type Counters struct {
	connectionsCreated  atomic.Int64
	connectionsReused   atomic.Int64
	connectionFailures  atomic.Int64
	connectionTimeouts  atomic.Int64
	currentOpen         atomic.Int64
	peakOpen            atomic.Int64
}

// Metrics is a point-in-time snapshot of Counters, handed to metrics-updated
// subscribers. Handlers receiving a Metrics value must never call back into
// the Context that produced it (see SPEC_FULL.md §5's re-entrancy ban).
type Metrics struct {
	ConnectionsCreated int64
	ConnectionsReused  int64
	ConnectionFailures int64
	ConnectionTimeouts int64
	CurrentOpen        int64
	PeakOpen           int64
}

func (c *Counters) recordOpen(reused bool) {
	if reused {
		c.connectionsReused.Add(1)
	} else {
		c.connectionsCreated.Add(1)
	}

	open := c.currentOpen.Add(1)
	for {
		peak := c.peakOpen.Load()
		if open <= peak || c.peakOpen.CompareAndSwap(peak, open) {
			break
		}
	}
}

func (c *Counters) recordClose() {
	c.currentOpen.Add(-1)
}

func (c *Counters) recordFailure(timeout bool) {
	c.connectionFailures.Add(1)
	if timeout {
		c.connectionTimeouts.Add(1)
	}
}

func (c *Counters) snapshot() Metrics {
	return Metrics{
		ConnectionsCreated: c.connectionsCreated.Load(),
		ConnectionsReused:  c.connectionsReused.Load(),
		ConnectionFailures: c.connectionFailures.Load(),
		ConnectionTimeouts: c.connectionTimeouts.Load(),
		CurrentOpen:        c.currentOpen.Load(),
		PeakOpen:           c.peakOpen.Load(),
	}
}
