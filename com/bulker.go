package com

import (
	"context"
	"time"
)

// idleFlushInterval bounds how long Bulk will hold a partial, below-count
// chunk before emitting it anyway. It must comfortably exceed realistic
// per-item arrival jitter while staying well under the gap between
// logically distinct bursts of input, so a slow producer doesn't stall
// downstream consumers behind a batch that will never reach count.
const idleFlushInterval = 100 * time.Millisecond

// BulkChunkSplitPolicy decides, for each incoming item, whether the chunk
// being assembled must be flushed before this item is added to it. It is
// called once per item, in arrival order, and may carry state across calls
// (see SplitOnDupId in the database package).
type BulkChunkSplitPolicy[T any] func(T) bool

// BulkChunkSplitPolicyFactory produces a fresh BulkChunkSplitPolicy for one
// Bulk call, so stateful policies don't leak state across independent
// streams.
type BulkChunkSplitPolicyFactory[T any] func() BulkChunkSplitPolicy[T]

// NeverSplit is a BulkChunkSplitPolicyFactory whose policy never demands an
// early split; Bulk then chunks purely by count and idle timeout.
func NeverSplit[T any]() BulkChunkSplitPolicy[T] {
	return func(T) bool { return false }
}

// Bulk reads items from in and emits them as chunks of up to count items on
// the returned channel. A chunk is flushed as soon as one of three things
// happens: it reaches count items, the split policy demands a new chunk
// for the item about to be added, or no new item has arrived for
// idleFlushInterval. The returned channel is closed once in is closed or
// ctx is cancelled, after a final flush of whatever chunk was pending.
func Bulk[T any](ctx context.Context, in <-chan T, count int, splitPolicyFactory BulkChunkSplitPolicyFactory[T]) <-chan []T {
	if count < 1 {
		count = 1
	}

	out := make(chan []T, 1)
	split := splitPolicyFactory()

	go func() {
		defer close(out)

		var batch []T
		flush := func() {
			if len(batch) == 0 {
				return
			}
			out <- batch
			batch = nil
		}

		idle := time.NewTimer(idleFlushInterval)
		defer idle.Stop()

		for {
			select {
			case v, ok := <-in:
				if !ok {
					flush()
					return
				}

				if split(v) {
					flush()
				}

				batch = append(batch, v)
				if len(batch) >= count {
					flush()
				}

				resetIdleTimer(idle)

			case <-idle.C:
				flush()
				idle.Reset(idleFlushInterval)

			case <-ctx.Done():
				flush()
				return
			}
		}
	}()

	return out
}

func resetIdleTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(idleFlushInterval)
}
