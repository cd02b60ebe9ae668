package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// postgres targets github.com/lib/pq. CockroachDB embeds this dialect
// directly (see cockroach.go) since it speaks the same wire protocol and the
// same "$N" positional markers, differing only in a handful of capability
// flags and its own version-string grammar.
type postgres struct {
	base
}

// NewPostgres returns the PostgreSQL dialect.
func NewPostgres() Dialect {
	return &postgres{base: base{
		product:       PostgreSQL,
		name:          "postgresql",
		marker:        "$",
		markerStyle:   Positional,
		ordinalMarker: true,
		maxParams:     65535,
		maxIdentLen:   63,
		lastInsertID:  ViaReturningClause,
	}}
}

func (d *postgres) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	if semanticType == TypeGUID {
		if id, ok := value.(uuid.UUID); ok {
			value = id.String()
		}
	}
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *postgres) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

// UpsertIncomingColumn references pq's `EXCLUDED` pseudo-table, the row
// proposed by INSERT ... ON CONFLICT.
func (d *postgres) UpsertIncomingColumn(column string) string {
	return "EXCLUDED." + d.WrapIdentifier(column)
}

func (d *postgres) ReturningClause(idColumn string) string {
	return "RETURNING " + d.WrapIdentifier(idColumn)
}

func (d *postgres) SessionSettings(readOnly bool) []string {
	if readOnly {
		return []string{"SET default_transaction_read_only = on"}
	}
	return nil
}

func (d *postgres) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		JSON:                true,
		Window:              true,
		CTE:                 true,
		InsertOnConflict:    true,
		Savepoints:          true,
		SetValuedParameters: true,
		Merge:               info.Version.AtLeast(Version{Major: 15}),
	}
}

func (d *postgres) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "SHOW server_version").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("postgres: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    PostgreSQL,
		Name:       "PostgreSQL",
		RawVersion: raw,
		Version:    parsePostgresVersion(raw),
		Compliance: SQL2011,
	}
	d.storeInfo(info)
	return info, nil
}

// parsePostgresVersion parses the leading "MAJOR.MINOR" (or bare "MAJOR" for
// PostgreSQL 10+, which dropped the minor component from SHOW server_version
// in common builds) out of a `SHOW server_version` string such as
// "16.3 (Debian 16.3-1.pgdg120+1)".
func parsePostgresVersion(raw string) Version {
	field := strings.Fields(raw)
	if len(field) == 0 {
		return Version{}
	}
	parts := strings.SplitN(field[0], ".", 3)
	v := Version{}
	if len(parts) > 0 {
		v.Major, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		v.Minor, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		v.Patch, _ = strconv.Atoi(parts[2])
	}
	return v
}
