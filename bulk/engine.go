package bulk

import (
	"context"
	"time"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/gateway"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Engine runs create/update/upsert_many operations against one
// gateway.Table[T], choosing among Sequential/Batched/Concurrent/
// ProviderOptimized per call via Options.Strategy (or Auto).
type Engine[T any] struct {
	table *gateway.Table[T]
}

// New returns an Engine bound to table.
func New[T any](table *gateway.Table[T]) *Engine[T] {
	return &Engine[T]{table: table}
}

// op is the single-row operation Sequential/Concurrent dispatch against:
// Create, Update or the single-row half of Upsert.
type op[T any] func(ctx context.Context, entity *T) error

// CreateMany inserts every entity in entities.
func (e *Engine[T]) CreateMany(ctx context.Context, entities []T, opts Options) Result {
	return e.run(ctx, entities, opts, func(ctx context.Context, entity *T) error {
		return e.table.Create(ctx, entity)
	}, true)
}

// UpdateMany updates every entity in entities, matched by key.
func (e *Engine[T]) UpdateMany(ctx context.Context, entities []T, opts Options) Result {
	return e.run(ctx, entities, opts, func(ctx context.Context, entity *T) error {
		_, err := e.table.Update(ctx, entity)
		return err
	}, false)
}

// UpsertMany inserts-or-updates every entity in entities.
func (e *Engine[T]) UpsertMany(ctx context.Context, entities []T, opts Options) Result {
	return e.run(ctx, entities, opts, func(ctx context.Context, entity *T) error {
		return e.table.Upsert(ctx, entity)
	}, true)
}

func (e *Engine[T]) run(ctx context.Context, entities []T, opts Options, single op[T], isInsert bool) Result {
	start := time.Now()

	strategy := opts.Strategy
	if strategy == Auto {
		strategy = resolveAuto(len(entities), e.providerOptimizedAvailable())
	}

	// Single-writer modes serialize all writes through one persistent
	// connection; fanning out concurrent single-row operations against it
	// would just queue behind the mode lock one at a time while still
	// paying goroutine/semaphore overhead, so the strategy selector blocks
	// Concurrent there and falls back to Batched.
	if strategy == Concurrent && e.table.Context().Mode() == database.ModeSingleWriter {
		strategy = Batched
	}

	var res Result
	switch strategy {
	case Sequential:
		res = e.runSequential(ctx, entities, opts, single)
	case Concurrent:
		res = e.runConcurrent(ctx, entities, opts, single)
	case ProviderOptimized:
		if isInsert && e.providerOptimizedAvailable() {
			res = e.runProviderOptimized(ctx, entities, opts)
		} else {
			res = e.runBatched(ctx, entities, opts, isInsert)
		}
	default:
		res = e.runBatched(ctx, entities, opts, isInsert)
	}

	res.Elapsed = time.Since(start)
	return res
}

func (e *Engine[T]) runSequential(ctx context.Context, entities []T, opts Options, single op[T]) Result {
	var res Result
	for i := range entities {
		if err := single(ctx, &entities[i]); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Index: i, Err: err})
			if !opts.ContinueOnError {
				break
			}
		} else {
			res.Succeeded++
		}
		if opts.Progress != nil {
			opts.Progress(res.Succeeded, res.Failed)
		}
	}
	return res
}

func (e *Engine[T]) runConcurrent(ctx context.Context, entities []T, opts Options, single op[T]) Result {
	sem := semaphore.NewWeighted(int64(opts.maxConcurrency()))
	g, gctx := errgroup.WithContext(ctx)

	var res Result
	var mu progressMutex
	for i := range entities {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.record(&res, i, err, opts.Progress)
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			err := single(gctx, &entities[i])
			mu.record(&res, i, err, opts.Progress)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// providerOptimizedAvailable reports whether this engine's dialect has a
// native bulk-load path wired (PostgreSQL/CockroachDB COPY, SQL Server bulk
// copy, DuckDB Appender). Oracle, MariaDB and Firebird have none upstream
// and always degrade to Batched.
func (e *Engine[T]) providerOptimizedAvailable() bool {
	switch e.table.Context().Product() {
	case dialect.PostgreSQL, dialect.CockroachDB, dialect.SqlServer, dialect.DuckDB:
		return true
	default:
		return false
	}
}
