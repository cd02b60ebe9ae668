package database

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nimbusdata/rdbx/com"
	"github.com/nimbusdata/rdbx/dberr"
	"golang.org/x/sync/semaphore"
)

// DefaultPoolAcquireTimeout bounds how long Governor.AcquireRead/AcquireWrite
// wait for a permit before raising dberr.ErrPoolSaturated.
const DefaultPoolAcquireTimeout = 5 * time.Second

// Release returns a permit acquired from a Governor.
type Release func()

// Governor gates read and write connection acquisition with two independent
// semaphore.Weighted permit pools, as described in SPEC_FULL.md §4.5. A
// writer-preference turnstile blocks new readers of a Governor whenever a
// writer on the same Governor is waiting. A Context gives reads and writes
// separate Governors, and its SingleWriter writes take the ModeLock instead
// of a write permit, so its readers never wait on this turnstile.
type Governor struct {
	reads  *semaphore.Weighted
	writes *semaphore.Weighted

	acquireTimeout time.Duration

	writerWaiting atomic.Int64
	turnstile     *com.Cond

	readsInUse  atomic.Int64
	writesInUse atomic.Int64
}

// NewGovernor returns a Governor with maxReads concurrent read permits and
// maxWrites concurrent write permits. A non-positive bound means unbounded
// (subject only to the provider's own pool limit).
func NewGovernor(ctx context.Context, maxReads, maxWrites int64, acquireTimeout time.Duration) *Governor {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultPoolAcquireTimeout
	}
	if maxReads <= 0 {
		maxReads = 1<<63 - 1
	}
	if maxWrites <= 0 {
		maxWrites = 1<<63 - 1
	}

	return &Governor{
		reads:          semaphore.NewWeighted(maxReads),
		writes:         semaphore.NewWeighted(maxWrites),
		acquireTimeout: acquireTimeout,
		turnstile:      com.NewCond(ctx),
	}
}

// AcquireRead blocks until a read permit is available, the turnstile is
// clear of waiting writers, ctx is cancelled, or the acquire timeout
// elapses (dberr.ErrPoolSaturated).
func (g *Governor) AcquireRead(ctx context.Context) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, g.acquireTimeout)
	defer cancel()

	for g.writerWaiting.Load() > 0 {
		select {
		case <-g.turnstile.Wait():
		case <-ctx.Done():
			return nil, g.timeoutErr(ctx)
		}
	}

	if err := g.reads.Acquire(ctx, 1); err != nil {
		return nil, g.timeoutErr(ctx)
	}

	g.readsInUse.Add(1)
	return func() {
		g.readsInUse.Add(-1)
		g.reads.Release(1)
	}, nil
}

// AcquireWrite blocks until a write permit is available, ctx is cancelled,
// or the acquire timeout elapses (dberr.ErrPoolSaturated). It raises the
// turnstile for the duration of the wait so concurrent AcquireRead calls
// queue behind it.
func (g *Governor) AcquireWrite(ctx context.Context) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, g.acquireTimeout)
	defer cancel()

	g.writerWaiting.Add(1)
	defer func() {
		g.writerWaiting.Add(-1)
		g.turnstile.Broadcast()
	}()

	if err := g.writes.Acquire(ctx, 1); err != nil {
		return nil, g.timeoutErr(ctx)
	}

	g.writesInUse.Add(1)
	return func() {
		g.writesInUse.Add(-1)
		g.writes.Release(1)
	}, nil
}

func (g *Governor) timeoutErr(ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return dberr.PoolSaturated(dberr.PoolSaturatedSnapshot{
		QueueDepth:     int(g.writerWaiting.Load()),
		InUse:          int(g.readsInUse.Load() + g.writesInUse.Load()),
		AcquireTimeout: g.acquireTimeout,
	})
}
