package gateway

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/sqlcontainer"
	"github.com/nimbusdata/rdbx/typemap"
	"github.com/pkg/errors"
)

// writeSelect renders, for every descriptor column, the
// `SELECT col1, col2, ... FROM table` prefix every retrieve operation
// shares.
func (t *Table[T]) writeSelect(c *sqlcontainer.Container) {
	c.WriteSQL("SELECT ")
	for i, col := range t.desc.Columns {
		if i > 0 {
			c.WriteSQL(", ")
		}
		c.WriteIdentifier(col.Name)
	}
	c.WriteSQL(" FROM ")
	c.WriteIdentifier(t.desc.Table)
}

// RetrieveOne returns the single row identified by key, in key-column
// declaration order (see EntityDescriptor.KeyColumns). Returns
// gateway.ErrNoRows if no row matches.
func (t *Table[T]) RetrieveOne(ctx context.Context, key ...any) (*T, error) {
	if err := requireKey(t.desc); err != nil {
		return nil, err
	}
	if len(key) != len(t.desc.KeyColumns()) {
		return nil, fmt.Errorf("gateway: %s: expected %d key value(s), got %d", t.desc.Table, len(t.desc.KeyColumns()), len(key))
	}

	conn, release, err := t.ctx.GetConnection(ctx, database.Read)
	if err != nil {
		return nil, err
	}
	defer release()

	container := t.ctx.CreateSQLContainer()
	t.writeSelect(container)
	if err := writeWhereKey(container, t.desc, t.ctx.Dialect(), key); err != nil {
		return nil, err
	}

	row := conn.Conn().QueryRowContext(ctx, container.SQL(), args(t.ctx.Dialect(), container.Params())...)
	dest := make([]any, len(t.desc.Columns))
	var out T
	for i, c := range t.desc.Columns {
		dest[i] = typemap.FieldAddr(&out, c)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, errors.Wrap(err, "can't scan row")
	}
	return &out, nil
}

// Retrieve runs a free-form WHERE clause (with "?"-or-named markers
// rewritten by the caller is not supported; where must already use the
// dialect's literal SQL, args bind positionally in the dialect's own
// style) and returns every matching row.
func (t *Table[T]) Retrieve(ctx context.Context, where string, args ...any) ([]T, error) {
	conn, release, err := t.ctx.GetConnection(ctx, database.Read)
	if err != nil {
		return nil, err
	}
	defer release()

	container := t.ctx.CreateSQLContainer()
	t.writeSelect(container)
	if where != "" {
		container.WriteSQL(" WHERE ").WriteSQL(where)
	}

	rows, err := conn.Conn().QueryContext(ctx, container.SQL(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "can't run query")
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		row, err := scanInto[T](t.desc, t.desc.Columns, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, errors.Wrap(rows.Err(), "error iterating rows")
}

// RetrieveByEntities returns every row whose key matches one of keys, using
// an IN (...) clause for single-column keys. Composite keys are rejected;
// callers with composite keys should use Retrieve with an explicit WHERE.
func (t *Table[T]) RetrieveByEntities(ctx context.Context, keys []any) ([]T, error) {
	if err := requireKey(t.desc); err != nil {
		return nil, err
	}
	keyCols := t.desc.KeyColumns()
	if len(keyCols) != 1 {
		return nil, fmt.Errorf("gateway: %s: RetrieveByEntities requires a single-column key, has %d", t.desc.Table, len(keyCols))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	conn, release, err := t.ctx.GetConnection(ctx, database.Read)
	if err != nil {
		return nil, err
	}
	defer release()

	container := t.ctx.CreateSQLContainer()
	t.writeSelect(container)
	container.WriteSQL(" WHERE ").WriteIdentifier(keyCols[0].Name).WriteSQL(" IN ")
	if err := container.BindSlice(sqlcontainer.KindKey, keyCols[0].Type, keys); err != nil {
		return nil, err
	}
	if err := container.CheckLimit(); err != nil {
		return nil, err
	}

	rows, err := conn.Conn().QueryContext(ctx, container.SQL(), args(t.ctx.Dialect(), container.Params())...)
	if err != nil {
		return nil, errors.Wrap(err, "can't run query")
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		row, err := scanInto[T](t.desc, t.desc.Columns, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, errors.Wrap(rows.Err(), "error iterating rows")
}
