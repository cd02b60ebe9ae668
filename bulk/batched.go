package bulk

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/typemap"
	"github.com/pkg/errors"
)

// runBatched groups entities into chunks and, for inserts, renders one
// multi-row INSERT per chunk via the dialect's BuildBatchInsertSQL. Update
// and upsert batches have no generic multi-row statement in this module (no
// dialect exposes a multi-row UPDATE/MERGE builder the way it does for
// INSERT), so their chunks execute row-by-row through single, still
// reporting progress once per chunk rather than once per row.
func (e *Engine[T]) runBatched(ctx context.Context, entities []T, opts Options, isInsert bool) Result {
	var res Result
	userBatchSize := opts.batchSize()

	d := e.table.Context().Dialect()
	cols := e.table.InsertableColumns()
	batchSize := userBatchSize
	if isInsert {
		batchSize = effectiveBatchSize(userBatchSize, d.MaxParameters(), len(cols))
	}
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(entities); start += batchSize {
		end := start + batchSize
		if end > len(entities) {
			end = len(entities)
		}
		chunk := entities[start:end]

		var err error
		if isInsert {
			err = e.execInsertBatch(ctx, chunk, cols)
		} else {
			err = e.execUpdateBatch(ctx, chunk)
		}

		if err != nil {
			if opts.ContinueOnError {
				e.retryRowByRow(ctx, entities, start, end, isInsert, &res, opts.Progress)
				continue
			}
			res.Failed += len(chunk)
			res.Errors = append(res.Errors, RowError{Index: start, Err: err})
			if opts.Progress != nil {
				opts.Progress(res.Succeeded, res.Failed)
			}
			break
		}
		res.Succeeded += len(chunk)
		if opts.Progress != nil {
			opts.Progress(res.Succeeded, res.Failed)
		}
	}
	return res
}

// retryRowByRow re-executes a failed batch's rows one at a time, recording
// per-row errors instead of surfacing the whole-batch exception.
func (e *Engine[T]) retryRowByRow(ctx context.Context, entities []T, start, end int, isInsert bool, res *Result, progress func(int, int)) {
	for i := start; i < end; i++ {
		var err error
		if isInsert {
			err = e.table.Create(ctx, &entities[i])
		} else {
			_, err = e.table.Update(ctx, &entities[i])
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RowError{Index: i, Err: err})
		} else {
			res.Succeeded++
		}
		if progress != nil {
			progress(res.Succeeded, res.Failed)
		}
	}
}

// execInsertBatch renders and runs one multi-row INSERT for chunk.
func (e *Engine[T]) execInsertBatch(ctx context.Context, chunk []T, cols []typemap.ColumnDescriptor) error {
	d := e.table.Context().Dialect()
	conn, release, err := e.table.Context().GetConnection(ctx, database.Write)
	if err != nil {
		return err
	}
	defer release()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	table := e.table.Descriptor().Table
	stmt := d.BuildBatchInsertSQL(table, names, len(chunk))

	callArgs := make([]any, 0, len(chunk)*len(cols))
	for r, entity := range chunk {
		for i, c := range cols {
			name := batchParamName(r*len(cols) + i)
			value := typemap.FieldValue(&entity, c)
			if d.ParameterMarkerStyle() == dialect.Named {
				callArgs = append(callArgs, sql.Named(name, value))
			} else {
				callArgs = append(callArgs, value)
			}
		}
	}

	_, err = conn.Conn().ExecContext(ctx, stmt, callArgs...)
	return errors.Wrap(err, "can't run batch insert")
}

// execUpdateBatch has no generic multi-row statement to dispatch (see
// runBatched's doc comment); it runs chunk's updates sequentially and
// returns the first error as the whole batch's failure signal.
func (e *Engine[T]) execUpdateBatch(ctx context.Context, chunk []T) error {
	for i := range chunk {
		if _, err := e.table.Update(ctx, &chunk[i]); err != nil {
			return err
		}
	}
	return nil
}

func batchParamName(idx int) string {
	return "p" + strconv.Itoa(idx)
}
