package dialect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// duckdb targets github.com/marcboeker/go-duckdb. DuckDB is an embedded
// analytical engine: most session settings that matter elsewhere (isolation
// level, ANSI quoting) are either always-on or meaningless here, so
// SessionSettings is nearly empty.
type duckdb struct {
	base
}

// NewDuckDB returns the DuckDB dialect.
func NewDuckDB() Dialect {
	return &duckdb{base: base{
		product:      DuckDB,
		name:         "duckdb",
		marker:       "?",
		markerStyle:  Positional,
		maxParams:    65535,
		maxIdentLen:  0,
		lastInsertID: NoLastInsertID,
	}}
}

// CreateParameter applies DuckDB's value-coercion rules: GUIDs travel as
// their canonical string form, which DuckDB's UUID type parses natively.
func (d *duckdb) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	if semanticType == TypeGUID {
		if id, ok := value.(uuid.UUID); ok {
			value = id.String()
		}
	}
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *duckdb) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

func (d *duckdb) UpsertIncomingColumn(column string) string {
	return "EXCLUDED." + d.WrapIdentifier(column)
}

func (d *duckdb) ReturningClause(idColumn string) string {
	return "RETURNING " + d.WrapIdentifier(idColumn)
}

func (d *duckdb) SessionSettings(readOnly bool) []string {
	if readOnly {
		return []string{"SET access_mode = 'READ_ONLY'"}
	}
	return nil
}

// Capabilities keeps Savepoints disabled: DuckDB added nested-transaction
// support late and it is not yet exercised widely enough upstream to trust
// under concurrent writers (see DESIGN.md Open Question decisions).
func (d *duckdb) Capabilities() Capabilities {
	return Capabilities{
		JSON:             true,
		Window:           true,
		CTE:              true,
		InsertOnConflict: true,
		Savepoints:       false,
	}
}

func (d *duckdb) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "PRAGMA version").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("duckdb: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    DuckDB,
		Name:       "DuckDB",
		RawVersion: raw,
		Version:    parsePostgresVersion(trimLeadingV(raw)),
		Compliance: SQL2011,
	}
	d.storeInfo(info)
	return info, nil
}

func trimLeadingV(s string) string {
	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		return s[1:]
	}
	return s
}
