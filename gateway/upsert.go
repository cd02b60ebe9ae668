package gateway

import (
	"context"
	"strings"

	"github.com/nimbusdata/rdbx/database"
	"github.com/nimbusdata/rdbx/dberr"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/sqlcontainer"
	"github.com/nimbusdata/rdbx/typemap"
	"github.com/pkg/errors"
)

// Upsert inserts entity or, if a row with the same key already exists,
// updates every non-key column to entity's values. The statement shape is
// picked from the dialect's capabilities: MERGE (SQL Server, Oracle,
// recent Firebird), INSERT ... ON CONFLICT (PostgreSQL, CockroachDB,
// SQLite, DuckDB) or INSERT ... ON DUPLICATE KEY UPDATE (MySQL, MariaDB).
func (t *Table[T]) Upsert(ctx context.Context, entity *T) error {
	if err := requireKey(t.desc); err != nil {
		return err
	}

	d := t.ctx.Dialect()
	caps := d.Capabilities()

	conn, release, err := t.ctx.GetConnection(ctx, database.Write)
	if err != nil {
		return err
	}
	defer release()

	container := t.ctx.CreateSQLContainer()

	var buildErr error
	switch {
	case caps.InsertOnConflict:
		buildErr = t.buildInsertOnConflict(container, entity)
	case caps.OnDuplicateKey:
		buildErr = t.buildOnDuplicateKey(container, entity)
	case caps.Merge:
		buildErr = t.buildMerge(container, entity)
	default:
		return errors.Wrapf(dberr.ErrUnsupportedFeature, "%s has no supported upsert strategy", d.Product())
	}
	if buildErr != nil {
		return buildErr
	}

	if err := container.CheckLimit(); err != nil {
		return err
	}

	_, err = conn.Conn().ExecContext(ctx, container.SQL(), args(d, container.Params())...)
	return errors.Wrap(err, "can't upsert row")
}

// buildInsertOnConflict renders the PostgreSQL/CockroachDB/SQLite/DuckDB
// `INSERT ... ON CONFLICT (key) DO UPDATE SET col = EXCLUDED.col, ...` form.
func (t *Table[T]) buildInsertOnConflict(c *sqlcontainer.Container, entity *T) error {
	d := t.ctx.Dialect()
	cols := t.insertableColumns()

	c.WriteSQL("INSERT INTO ").WriteIdentifier(t.desc.Table).WriteSQL(" (")
	for i, col := range cols {
		if i > 0 {
			c.WriteSQL(", ")
		}
		c.WriteIdentifier(col.Name)
	}
	c.WriteSQL(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			c.WriteSQL(", ")
		}
		if _, err := c.Bind(sqlcontainer.KindInsert, col.Type, typemap.FieldValue(entity, col)); err != nil {
			return err
		}
	}
	c.WriteSQL(") ON CONFLICT (")
	for i, col := range t.desc.KeyColumns() {
		if i > 0 {
			c.WriteSQL(", ")
		}
		c.WriteIdentifier(col.Name)
	}
	c.WriteSQL(") DO UPDATE SET ")
	return t.writeUpdateSet(c, d)
}

// buildOnDuplicateKey renders the MySQL/MariaDB
// `INSERT ... ON DUPLICATE KEY UPDATE col = new_values.col, ...` form,
// appending the row alias MySQL 8.0.19+ needs when the dialect prefers it
// over the deprecated VALUES(col) function.
func (t *Table[T]) buildOnDuplicateKey(c *sqlcontainer.Container, entity *T) error {
	d := t.ctx.Dialect()
	cols := t.insertableColumns()

	c.WriteSQL("INSERT INTO ").WriteIdentifier(t.desc.Table).WriteSQL(" (")
	for i, col := range cols {
		if i > 0 {
			c.WriteSQL(", ")
		}
		c.WriteIdentifier(col.Name)
	}
	c.WriteSQL(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			c.WriteSQL(", ")
		}
		if _, err := c.Bind(sqlcontainer.KindInsert, col.Type, typemap.FieldValue(entity, col)); err != nil {
			return err
		}
	}
	c.WriteSQL(")")
	if usesRowAlias(d) {
		c.WriteSQL(" AS new_values")
	}
	c.WriteSQL(" ON DUPLICATE KEY UPDATE ")
	return t.writeUpdateSet(c, d)
}

// buildMerge renders the SQL Server/Oracle/Firebird
// `MERGE INTO table USING (...) AS source ON (...) WHEN MATCHED THEN
// UPDATE SET ... WHEN NOT MATCHED THEN INSERT (...) VALUES (...)` form.
func (t *Table[T]) buildMerge(c *sqlcontainer.Container, entity *T) error {
	d := t.ctx.Dialect()
	cols := t.insertableColumns()
	key := t.desc.KeyColumns()

	c.WriteSQL("MERGE INTO ").WriteIdentifier(t.desc.Table).WriteSQL(" AS target USING (SELECT ")
	for i, col := range t.desc.Columns {
		if i > 0 {
			c.WriteSQL(", ")
		}
		if _, err := c.Bind(sqlcontainer.KindValue, col.Type, typemap.FieldValue(entity, col)); err != nil {
			return err
		}
		c.WriteSQL(" AS ").WriteIdentifier(col.Name)
	}
	c.WriteSQL(") AS source ON (")
	for i, col := range key {
		if i > 0 {
			c.WriteSQL(" AND ")
		}
		c.WriteSQL("target.").WriteIdentifier(col.Name).WriteSQL(" = source.").WriteIdentifier(col.Name)
	}
	c.WriteSQL(") WHEN MATCHED THEN UPDATE SET ")

	set := 0
	for _, col := range t.desc.Columns {
		if col.Role == typemap.RolePrimaryKey || col.Role == typemap.RoleSurrogateID {
			continue
		}
		if set > 0 {
			c.WriteSQL(", ")
		}
		c.WriteSQL("target.").WriteIdentifier(col.Name).WriteSQL(" = ").WriteSQL(d.UpsertIncomingColumn(col.Name))
		set++
	}

	c.WriteSQL(" WHEN NOT MATCHED THEN INSERT (")
	for i, col := range cols {
		if i > 0 {
			c.WriteSQL(", ")
		}
		c.WriteIdentifier(col.Name)
	}
	c.WriteSQL(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			c.WriteSQL(", ")
		}
		c.WriteSQL(d.UpsertIncomingColumn(col.Name))
	}
	c.WriteSQL(")")
	if d.Product() != dialect.SqlServer {
		// SQL Server requires the statement end with a semicolon but tolerates
		// its absence; Oracle and Firebird's MERGE statement requires one.
		c.WriteSQL(";")
	}
	return nil
}

// writeUpdateSet appends `col1 = incoming1, col2 = incoming2, ...` for
// every non-key column, using d.UpsertIncomingColumn to reference the
// proposed row.
func (t *Table[T]) writeUpdateSet(c *sqlcontainer.Container, d dialect.Dialect) error {
	set := 0
	for _, col := range t.desc.Columns {
		if col.Role == typemap.RolePrimaryKey || col.Role == typemap.RoleSurrogateID {
			continue
		}
		if set > 0 {
			c.WriteSQL(", ")
		}
		c.WriteIdentifier(col.Name).WriteSQL(" = ").WriteSQL(d.UpsertIncomingColumn(col.Name))
		set++
	}
	return nil
}

// usesRowAlias reports whether d.UpsertIncomingColumn renders references
// against a named row alias (MySQL 8.0.19+'s `new_values`) rather than the
// deprecated VALUES(col) function, which tells buildOnDuplicateKey whether
// the INSERT needs `AS new_values` appended.
func usesRowAlias(d dialect.Dialect) bool {
	return strings.HasPrefix(d.UpsertIncomingColumn("probe"), "new_values.")
}
