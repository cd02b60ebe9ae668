// Package bulk implements create_many/update_many/upsert_many against a
// gateway.Table[T]: a Sequential/Batched/Concurrent/ProviderOptimized/Auto
// strategy state machine generalized from the teacher's com.Bulk chunking
// generator and its three ad hoc BulkExec/NamedBulkExec/namedBulkExec
// functions.
package bulk

import "time"

// Strategy selects how a batch of entities is written.
type Strategy int

const (
	// Auto picks Sequential for small batches, ProviderOptimized for large
	// ones when the dialect has a provider-optimized path, else Batched.
	Auto Strategy = iota
	Sequential
	Batched
	Concurrent
	ProviderOptimized
)

// autoSequentialThreshold and autoProviderThreshold bound the Auto
// strategy's entity-count cutoffs, matching spec thresholds of "≤5" and
// ">10000".
const (
	autoSequentialThreshold = 5
	autoProviderThreshold   = 10000
)

// Options configures one bulk call. The zero value is a usable default:
// Auto strategy, continue-on-error off, a conservative batch size and
// concurrency, no progress callback.
type Options struct {
	Strategy Strategy

	// BatchSize caps rows per multi-row statement under Batched. The
	// effective size is further capped by the dialect's MaxParameters, see
	// effectiveBatchSize.
	BatchSize int

	// MaxConcurrency caps in-flight single-row operations under Concurrent.
	MaxConcurrency int

	// ContinueOnError, for Sequential, keeps going after a row fails instead
	// of stopping at the first failure; for Batched, a failed batch is
	// retried row-by-row and per-row errors are recorded instead of
	// surfacing the batch-level error.
	ContinueOnError bool

	// Progress, if not nil, is invoked after each row (Sequential/Concurrent)
	// or each batch (Batched/ProviderOptimized) with cumulative counts.
	Progress func(succeeded, failed int)
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 500
}

func (o Options) maxConcurrency() int {
	if o.MaxConcurrency > 0 {
		return o.MaxConcurrency
	}
	return 8
}

// RowError records one failed entity's index in the input slice/channel and
// the error that operation produced.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string {
	return e.Err.Error()
}

// Result summarizes one bulk call.
type Result struct {
	Succeeded int
	Failed    int
	Errors    []RowError
	Elapsed   time.Duration
}

// OpsPerSecond reports throughput across both successful and failed rows.
func (r Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Succeeded+r.Failed) / r.Elapsed.Seconds()
}

// effectiveBatchSize applies the spec's `min(user_batch_size,
// floor(max_params / columns_per_row * 0.9))` formula, so a generated
// multi-row statement never exceeds the dialect's parameter limit.
func effectiveBatchSize(userBatchSize, maxParams, columnsPerRow int) int {
	if maxParams <= 0 || columnsPerRow <= 0 {
		return userBatchSize
	}
	capped := int(float64(maxParams) / float64(columnsPerRow) * 0.9)
	if capped < 1 {
		capped = 1
	}
	if capped < userBatchSize {
		return capped
	}
	return userBatchSize
}

// resolveAuto implements the Auto strategy's entity-count thresholds.
func resolveAuto(entityCount int, providerOptimizedAvailable bool) Strategy {
	switch {
	case entityCount <= autoSequentialThreshold:
		return Sequential
	case entityCount > autoProviderThreshold && providerOptimizedAvailable:
		return ProviderOptimized
	default:
		return Batched
	}
}
