package gateway

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/sqlcontainer"
	"github.com/nimbusdata/rdbx/typemap"
	"github.com/pkg/errors"
)

// sqlNamedOut binds dest as a named OUT parameter, the form godror expects
// for an Oracle RETURNING ... INTO :name clause.
func sqlNamedOut(name string, dest any) any {
	return sql.Named(name, sql.Out{Dest: dest})
}

// insertableColumns returns every column except surrogate ids, which the
// database assigns and Create reads back via the dialect's last-insert-id
// strategy rather than sending a value for.
func (t *Table[T]) insertableColumns() []typemap.ColumnDescriptor {
	cols := make([]typemap.ColumnDescriptor, 0, len(t.desc.Columns))
	for _, c := range t.desc.Columns {
		if c.Role == typemap.RoleSurrogateID {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// InsertableColumns exposes insertableColumns to callers outside this
// package (package bulk's Batched/ProviderOptimized strategies, which build
// their own multi-row statements against the same column set Create uses).
func (t *Table[T]) InsertableColumns() []typemap.ColumnDescriptor {
	return t.insertableColumns()
}

// Create inserts entity and, if the table has a surrogate id column and the
// dialect supports reading it back in the same round-trip, writes the
// generated value back into entity.
func (t *Table[T]) Create(ctx context.Context, entity *T) error {
	conn, release, err := t.ctx.GetConnection(ctx, database.Write)
	if err != nil {
		return err
	}
	defer release()

	cols := t.insertableColumns()
	d := t.ctx.Dialect()
	container := t.ctx.CreateSQLContainer()

	container.WriteSQL("INSERT INTO ").WriteIdentifier(t.desc.Table).WriteSQL(" (")
	for i, c := range cols {
		if i > 0 {
			container.WriteSQL(", ")
		}
		container.WriteIdentifier(c.Name)
	}
	container.WriteSQL(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			container.WriteSQL(", ")
		}
		if _, err := container.Bind(sqlcontainer.KindInsert, c.Type, typemap.FieldValue(entity, c)); err != nil {
			return err
		}
	}
	container.WriteSQL(")")

	surrogate, hasSurrogate := t.desc.SurrogateID()

	// Oracle's RETURNING ... INTO clause binds an OUT parameter rather than
	// projecting a result set column, unlike every other dialect's trailing
	// RETURNING; godror honors it via sql.Out the same way it does any other
	// OUT bind variable.
	if hasSurrogate && d.Product() == dialect.Oracle && d.ReturningClause(surrogate.Name) != "" {
		container.WriteSQL(" " + d.ReturningClause(surrogate.Name))
		callArgs := append(args(d, container.Params()),
			sqlNamedOut("returned_id", typemap.FieldAddr(entity, surrogate)))
		_, err := conn.Conn().ExecContext(ctx, container.SQL(), callArgs...)
		return errors.Wrap(err, "can't read back generated id")
	}

	if hasSurrogate && d.ReturningClause(surrogate.Name) != "" && d.LastInsertIDStrategy() == dialect.ViaReturningClause {
		container.WriteSQL(" " + d.ReturningClause(surrogate.Name))
		row := conn.Conn().QueryRowContext(ctx, container.SQL(), args(d, container.Params())...)
		return errors.Wrap(row.Scan(typemap.FieldAddr(entity, surrogate)), "can't read back generated id")
	}

	if err := container.CheckLimit(); err != nil {
		return err
	}

	result, err := conn.Conn().ExecContext(ctx, container.SQL(), args(d, container.Params())...)
	if err != nil {
		return errors.Wrap(err, "can't insert row")
	}

	if hasSurrogate && d.LastInsertIDStrategy() != dialect.NoLastInsertID {
		id, err := result.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "can't read back generated id")
		}
		typemap.SetSurrogateID(entity, surrogate, id)
	}
	return nil
}

// Update writes every non-key column of entity back to its row, matched by
// key. Returns sql.ErrNoRows-equivalent information via the affected-row
// count being zero is not itself an error; callers that need
// "exactly one row changed" should check manually via Update's return.
func (t *Table[T]) Update(ctx context.Context, entity *T) (int64, error) {
	if err := requireKey(t.desc); err != nil {
		return 0, err
	}

	conn, release, err := t.ctx.GetConnection(ctx, database.Write)
	if err != nil {
		return 0, err
	}
	defer release()

	d := t.ctx.Dialect()
	container := t.ctx.CreateSQLContainer()
	container.WriteSQL("UPDATE ").WriteIdentifier(t.desc.Table).WriteSQL(" SET ")

	set := 0
	for _, c := range t.desc.Columns {
		if c.Role == typemap.RolePrimaryKey || c.Role == typemap.RoleSurrogateID {
			continue
		}
		if set > 0 {
			container.WriteSQL(", ")
		}
		container.WriteIdentifier(c.Name).WriteSQL(" = ")
		if _, err := container.Bind(sqlcontainer.KindSet, c.Type, typemap.FieldValue(entity, c)); err != nil {
			return 0, err
		}
		set++
	}
	if set == 0 {
		return 0, fmt.Errorf("gateway: %s has no updatable columns", t.desc.Table)
	}

	if err := writeWhereKey(container, t.desc, d, keyValues(t.desc, entity)); err != nil {
		return 0, err
	}
	if err := container.CheckLimit(); err != nil {
		return 0, err
	}

	result, err := conn.Conn().ExecContext(ctx, container.SQL(), args(d, container.Params())...)
	if err != nil {
		return 0, errors.Wrap(err, "can't update row")
	}
	affected, err := result.RowsAffected()
	return affected, errors.Wrap(err, "can't read affected row count")
}

// Delete removes the row identified by entity's key.
func (t *Table[T]) Delete(ctx context.Context, entity *T) (int64, error) {
	if err := requireKey(t.desc); err != nil {
		return 0, err
	}

	conn, release, err := t.ctx.GetConnection(ctx, database.Write)
	if err != nil {
		return 0, err
	}
	defer release()

	d := t.ctx.Dialect()
	container := t.ctx.CreateSQLContainer()
	container.WriteSQL("DELETE FROM ").WriteIdentifier(t.desc.Table)
	if err := writeWhereKey(container, t.desc, d, keyValues(t.desc, entity)); err != nil {
		return 0, err
	}

	result, err := conn.Conn().ExecContext(ctx, container.SQL(), args(d, container.Params())...)
	if err != nil {
		return 0, errors.Wrap(err, "can't delete row")
	}
	affected, err := result.RowsAffected()
	return affected, errors.Wrap(err, "can't read affected row count")
}

// DeleteByEntities removes every row whose single-column key matches one of
// keys.
func (t *Table[T]) DeleteByEntities(ctx context.Context, keys []any) (int64, error) {
	if err := requireKey(t.desc); err != nil {
		return 0, err
	}
	keyCols := t.desc.KeyColumns()
	if len(keyCols) != 1 {
		return 0, fmt.Errorf("gateway: %s: DeleteByEntities requires a single-column key, has %d", t.desc.Table, len(keyCols))
	}
	if len(keys) == 0 {
		return 0, nil
	}

	conn, release, err := t.ctx.GetConnection(ctx, database.Write)
	if err != nil {
		return 0, err
	}
	defer release()

	d := t.ctx.Dialect()
	container := t.ctx.CreateSQLContainer()
	container.WriteSQL("DELETE FROM ").WriteIdentifier(t.desc.Table).WriteSQL(" WHERE ").
		WriteIdentifier(keyCols[0].Name).WriteSQL(" IN ")
	if err := container.BindSlice(sqlcontainer.KindKey, keyCols[0].Type, keys); err != nil {
		return 0, err
	}
	if err := container.CheckLimit(); err != nil {
		return 0, err
	}

	result, err := conn.Conn().ExecContext(ctx, container.SQL(), args(d, container.Params())...)
	if err != nil {
		return 0, errors.Wrap(err, "can't delete rows")
	}
	affected, err := result.RowsAffected()
	return affected, errors.Wrap(err, "can't read affected row count")
}
