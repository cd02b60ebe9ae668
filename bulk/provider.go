package bulk

import (
	"context"
	"database/sql/driver"

	mssql "github.com/denisenkom/go-mssqldb"
	duckdb "github.com/marcboeker/go-duckdb"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/typemap"
)

// runProviderOptimized wires each provider's native bulk-load API: pq's
// binary COPY protocol for PostgreSQL/CockroachDB, go-mssqldb's bulk-copy
// statement for SQL Server, and DuckDB's Appender. These paths bypass
// triggers and row-level RETURNING, so generated surrogate ids are not
// written back to entities; callers that need ids back should use
// Sequential instead (Batched's multi-row INSERT does not read ids back
// either).
func (e *Engine[T]) runProviderOptimized(ctx context.Context, entities []T, opts Options) Result {
	cols := e.table.InsertableColumns()
	table := e.table.Descriptor().Table

	var err error
	switch e.table.Context().Product() {
	case dialect.PostgreSQL, dialect.CockroachDB:
		err = e.copyInPq(ctx, table, cols, entities)
	case dialect.SqlServer:
		err = e.copyInMssql(ctx, table, cols, entities)
	case dialect.DuckDB:
		err = e.appendDuckDB(ctx, table, cols, entities)
	default:
		return e.runBatched(ctx, entities, opts, true)
	}

	var res Result
	if err != nil {
		res.Failed = len(entities)
		res.Errors = append(res.Errors, RowError{Index: 0, Err: err})
	} else {
		res.Succeeded = len(entities)
	}
	if opts.Progress != nil {
		opts.Progress(res.Succeeded, res.Failed)
	}
	return res
}

func (e *Engine[T]) copyInPq(ctx context.Context, table string, cols []typemap.ColumnDescriptor, entities []T) error {
	conn, release, err := e.table.Context().GetConnection(ctx, database.Write)
	if err != nil {
		return err
	}
	defer release()

	names := columnNames(cols)
	tx, err := conn.Conn().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't begin copy transaction")
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, names...))
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "can't prepare copy statement")
	}

	for i := range entities {
		if _, err := stmt.ExecContext(ctx, rowValues(&entities[i], cols)...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return errors.Wrap(err, "can't copy row")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return errors.Wrap(err, "can't flush copy buffer")
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "can't close copy statement")
	}
	return errors.Wrap(tx.Commit(), "can't commit copy transaction")
}

func (e *Engine[T]) copyInMssql(ctx context.Context, table string, cols []typemap.ColumnDescriptor, entities []T) error {
	conn, release, err := e.table.Context().GetConnection(ctx, database.Write)
	if err != nil {
		return err
	}
	defer release()

	names := columnNames(cols)
	stmt, err := conn.Conn().PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, names...))
	if err != nil {
		return errors.Wrap(err, "can't prepare bulk copy statement")
	}

	for i := range entities {
		if _, err := stmt.ExecContext(ctx, rowValues(&entities[i], cols)...); err != nil {
			_ = stmt.Close()
			return errors.Wrap(err, "can't bulk-copy row")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return errors.Wrap(err, "can't flush bulk copy")
	}
	return errors.Wrap(stmt.Close(), "can't close bulk copy statement")
}

func (e *Engine[T]) appendDuckDB(ctx context.Context, table string, cols []typemap.ColumnDescriptor, entities []T) error {
	conn, release, err := e.table.Context().GetConnection(ctx, database.Write)
	if err != nil {
		return err
	}
	defer release()

	var appendErr error
	rawErr := conn.Conn().Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return errors.New("duckdb: unexpected driver connection type")
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", table)
		if err != nil {
			return errors.Wrap(err, "can't create appender")
		}
		defer appender.Close()

		for i := range entities {
			values := rowValues(&entities[i], cols)
			if err := appender.AppendRow(values...); err != nil {
				appendErr = errors.Wrap(err, "can't append row")
				return appendErr
			}
		}
		return nil
	})
	if rawErr != nil {
		return rawErr
	}
	return appendErr
}

func columnNames(cols []typemap.ColumnDescriptor) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func rowValues(entity any, cols []typemap.ColumnDescriptor) []any {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = typemap.FieldValue(entity, c)
	}
	return values
}
