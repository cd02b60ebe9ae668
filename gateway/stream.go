package gateway

import (
	"context"

	"github.com/nimbusdata/rdbx/database"
	"github.com/pkg/errors"
)

// RetrieveStream runs a free-form WHERE clause and streams matching rows to
// the returned channel as they're scanned, rather than buffering the whole
// result set in memory the way Retrieve does. The channel is closed when
// the query completes or ctx is cancelled; a send error is reported on the
// returned error channel, which receives at most one value.
func (t *Table[T]) RetrieveStream(ctx context.Context, where string, queryArgs ...any) (<-chan T, <-chan error) {
	out := make(chan T)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		conn, release, err := t.ctx.GetConnection(ctx, database.Read)
		if err != nil {
			errCh <- err
			return
		}
		defer release()

		container := t.ctx.CreateSQLContainer()
		t.writeSelect(container)
		if where != "" {
			container.WriteSQL(" WHERE ").WriteSQL(where)
		}

		rows, err := conn.Conn().QueryContext(ctx, container.SQL(), queryArgs...)
		if err != nil {
			errCh <- errors.Wrap(err, "can't run query")
			return
		}
		defer rows.Close()

		for rows.Next() {
			row, err := scanInto[T](t.desc, t.desc.Columns, rows)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- *row:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- errors.Wrap(err, "error iterating rows")
		}
	}()

	return out, errCh
}

// LoadStream reads keys from the given channel, batches them into
// IN (...) lookups sized to the dialect's max-parameter limit (capped at
// 1000 keys), and streams
// the matching rows to the returned channel. Rows are not guaranteed to
// preserve keys' input order. Single-column keys only, same constraint as
// RetrieveByEntities.
func (t *Table[T]) LoadStream(ctx context.Context, keys <-chan any) (<-chan T, <-chan error) {
	out := make(chan T)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if err := requireKey(t.desc); err != nil {
			errCh <- err
			return
		}
		keyCols := t.desc.KeyColumns()
		if len(keyCols) != 1 {
			errCh <- errors.Errorf("gateway: %s: LoadStream requires a single-column key, has %d", t.desc.Table, len(keyCols))
			return
		}

		batchSize := t.ctx.Dialect().MaxParameters()
		if batchSize <= 0 || batchSize > 1000 {
			batchSize = 1000
		}

		var batch []any
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			rows, err := t.RetrieveByEntities(ctx, batch)
			batch = batch[:0]
			if err != nil {
				return err
			}
			for _, row := range rows {
				select {
				case out <- row:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}

		for {
			select {
			case k, ok := <-keys:
				if !ok {
					if err := flush(); err != nil {
						errCh <- err
					}
					return
				}
				batch = append(batch, k)
				if len(batch) >= batchSize {
					if err := flush(); err != nil {
						errCh <- err
						return
					}
				}
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}
