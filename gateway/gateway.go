// Package gateway implements the generic CRUD table gateway: retrieve,
// create, update, delete and upsert operations for an arbitrary Go struct
// type, rendered through dialect.Dialect and sqlcontainer.Container instead
// of the MySQL/PostgreSQL two-case switch the CRUD statement builders in
// the database package originally hard-coded.
package gateway

import (
	"database/sql"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/dberr"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/sqlcontainer"
	"github.com/nimbusdata/rdbx/typemap"
	"github.com/pkg/errors"
)

// Table is a generic CRUD gateway for one Go struct type T, bound to one
// database.Context. A Table is safe for concurrent use; it holds no
// mutable per-call state beyond the immutable typemap.EntityDescriptor
// built once at construction.
type Table[T any] struct {
	ctx  *database.Context
	desc *typemap.EntityDescriptor
}

// New describes T against registry and returns a Table bound to ctx.
func New[T any](ctx *database.Context, registry *typemap.Registry) (*Table[T], error) {
	var zero T
	desc, err := registry.Describe(&zero)
	if err != nil {
		return nil, errors.Wrapf(err, "can't describe %T", zero)
	}
	return &Table[T]{ctx: ctx, desc: desc}, nil
}

// Descriptor returns the EntityDescriptor this Table was built from.
func (t *Table[T]) Descriptor() *typemap.EntityDescriptor { return t.desc }

// Context returns the database.Context this Table is bound to, for callers
// (e.g. package bulk) that need direct connection/dialect access alongside
// the Table's own column classification.
func (t *Table[T]) Context() *database.Context { return t.ctx }

// args converts a Container's bound parameters to database/sql call
// arguments, using sql.Named for dialects with stable-named markers
// (SQL Server, Oracle) and plain positional values for every other
// dialect (PostgreSQL/CockroachDB's "$N", and "?" for MySQL/MariaDB/
// SQLite/DuckDB/Firebird).
func args(d dialect.Dialect, params []dialect.Parameter) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if d.ParameterMarkerStyle() == dialect.Named {
			out[i] = sql.Named(p.Name, p.Value)
		} else {
			out[i] = p.Value
		}
	}
	return out
}

// keyValues returns entity's key column values in descriptor order, for use
// in a WHERE clause that identifies exactly one row.
func keyValues(desc *typemap.EntityDescriptor, entity any) []any {
	key := desc.KeyColumns()
	values := make([]any, len(key))
	for i, c := range key {
		values[i] = typemap.FieldValue(entity, c)
	}
	return values
}

// writeWhereKey appends `WHERE col1 = ? AND col2 = ? ...` for desc's key
// columns, bound against values in the same order keyValues returns them.
func writeWhereKey(c *sqlcontainer.Container, desc *typemap.EntityDescriptor, d dialect.Dialect, values []any) error {
	c.WriteSQL(" WHERE ")
	for i, col := range desc.KeyColumns() {
		if i > 0 {
			c.WriteSQL(" AND ")
		}
		c.WriteIdentifier(col.Name)
		c.WriteSQL(" = ")
		if _, err := c.Bind(sqlcontainer.KindKey, col.Type, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// scanInto reads one row of cols (in desc order) from rows into a freshly
// allocated *T.
func scanInto[T any](desc *typemap.EntityDescriptor, cols []typemap.ColumnDescriptor, rows *sql.Rows) (*T, error) {
	var out T
	dest := make([]any, len(cols))
	for i, c := range cols {
		dest[i] = typemap.FieldAddr(&out, c)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "can't scan row")
	}
	return &out, nil
}

// ErrNoRows is returned by RetrieveOne when the lookup matches nothing.
var ErrNoRows = sql.ErrNoRows

func requireKey(desc *typemap.EntityDescriptor) error {
	if len(desc.KeyColumns()) == 0 {
		return dberr.ErrNoPrimaryKey
	}
	return nil
}
