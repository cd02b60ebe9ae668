package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sqlite targets modernc.org/sqlite, the pure-Go CGo-free driver. SQLite has
// no server to version-detect against in the usual sense; DetectProduct
// reads `sqlite_version()` from the linked library instead.
type sqlite struct {
	base
}

// NewSQLite returns the SQLite dialect.
func NewSQLite() Dialect {
	return &sqlite{base: base{
		product:      SQLite,
		name:         "sqlite",
		marker:       "?",
		markerStyle:  Positional,
		maxParams:    32766,
		maxIdentLen:  0, // SQLite imposes no identifier length limit
		lastInsertID: ViaLastInsertRowID,
	}}
}

// CreateParameter applies SQLite's value-coercion rules: it has no native
// GUID or DateTime type, so GUIDs travel as their canonical string form and
// DateTime values travel as UTC ISO-8601 strings, both of which sort and
// compare correctly as TEXT.
func (d *sqlite) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	switch semanticType {
	case TypeGUID:
		if id, ok := value.(uuid.UUID); ok {
			value = id.String()
		}
	case TypeDateTime:
		if t, ok := value.(time.Time); ok {
			value = t.UTC().Format(time.RFC3339Nano)
		}
	}
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *sqlite) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

func (d *sqlite) UpsertIncomingColumn(column string) string {
	return "excluded." + d.WrapIdentifier(column)
}

func (d *sqlite) ReturningClause(idColumn string) string {
	return "RETURNING " + d.WrapIdentifier(idColumn)
}

func (d *sqlite) SessionSettings(readOnly bool) []string {
	settings := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	if readOnly {
		settings = append(settings, "PRAGMA query_only = ON")
	}
	return settings
}

func (d *sqlite) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		JSON:             true,
		Window:           info.Version.AtLeast(Version{Major: 3, Minor: 25}),
		CTE:              info.Version.AtLeast(Version{Major: 3, Minor: 8, Patch: 3}),
		InsertOnConflict: info.Version.AtLeast(Version{Major: 3, Minor: 24}),
		Savepoints:       true,
	}
}

func (d *sqlite) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("sqlite: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    SQLite,
		Name:       "SQLite",
		RawVersion: raw,
		Version:    parsePostgresVersion(raw),
		Compliance: SQL2008,
	}
	d.storeInfo(info)
	return info, nil
}
