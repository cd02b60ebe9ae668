package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// oracle targets github.com/godror/godror, which expects ":name"-style bind
// variables and ODPI-C driver-level handling of LOBs, NUMBER and RAW.
type oracle struct {
	base
}

// NewOracle returns the Oracle dialect.
func NewOracle() Dialect {
	return &oracle{base: base{
		product:      Oracle,
		name:         "oracle",
		marker:       ":",
		markerStyle:  Named,
		maxParams:    64000,
		maxIdentLen:  128,
		lastInsertID: ViaReturningClause,
	}}
}

// CreateParameter applies Oracle's value-coercion rules: GUIDs travel as
// RAW(16) binary (godror maps []byte to RAW automatically) and booleans,
// which Oracle has no native type for, travel as NUMBER(1).
func (d *oracle) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	switch semanticType {
	case TypeGUID:
		if id, ok := value.(uuid.UUID); ok {
			b := id
			value = b[:]
		}
	case TypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				value = int16(1)
			} else {
				value = int16(0)
			}
		}
	}
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

// BuildBatchInsertSQL renders Oracle's `INSERT ALL ... SELECT 1 FROM DUAL`
// form since Oracle has no multi-row VALUES clause.
func (d *oracle) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	quotedTable := d.WrapIdentifier(table)
	quotedCols := strings.Join(wrapAll(d, columns), ",")

	var sb strings.Builder
	sb.WriteString("INSERT ALL")
	for r := 0; r < rows; r++ {
		sb.WriteString(fmt.Sprintf(" INTO %s (%s) VALUES (", quotedTable, quotedCols))
		for i := range columns {
			if i > 0 {
				sb.WriteByte(',')
			}
			name := fmt.Sprintf("p%d", r*len(columns)+i)
			sb.WriteString(d.MakeParameterMarker(name, r*len(columns)+i))
		}
		sb.WriteByte(')')
	}
	sb.WriteString(" SELECT 1 FROM DUAL")
	return sb.String()
}

func wrapAll(d Dialect, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.WrapIdentifier(n)
	}
	return out
}

// UpsertIncomingColumn references the MERGE statement's `source` alias, same
// convention as SQL Server's MERGE rendering.
func (d *oracle) UpsertIncomingColumn(column string) string {
	return "source." + d.WrapIdentifier(column)
}

func (d *oracle) ReturningClause(idColumn string) string {
	return "RETURNING " + d.WrapIdentifier(idColumn) + " INTO :returned_id"
}

func (d *oracle) SessionSettings(readOnly bool) []string {
	settings := []string{
		`ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SSXFF'`,
		`ALTER SESSION SET TIME_ZONE = '+00:00'`,
	}
	if readOnly {
		settings = append(settings, "SET TRANSACTION READ ONLY")
	}
	return settings
}

// ReleaseSavepointSQL is a no-op: Oracle has no RELEASE SAVEPOINT statement,
// a savepoint is simply superseded by the next one or dropped by commit/
// rollback.
func (d *oracle) ReleaseSavepointSQL(name string) string { return "" }

func (d *oracle) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		Merge:      true,
		JSON:       info.Version.AtLeast(Version{Major: 21}),
		Window:     true,
		CTE:        true,
		Savepoints: true,
	}
}

func (d *oracle) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	const q = `SELECT banner FROM v$version WHERE banner LIKE 'Oracle%'`
	if err := conn.QueryRowContext(ctx, q).Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("oracle: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    Oracle,
		Name:       "Oracle Database",
		RawVersion: raw,
		Version:    parseOracleVersion(raw),
		Compliance: SQL2011,
	}
	d.storeInfo(info)
	return info, nil
}

// parseOracleVersion pulls "MAJOR.MINOR.PATCH" out of a v$version banner
// such as "Oracle Database 19c Enterprise Edition Release 19.0.0.0.0 - Production".
func parseOracleVersion(raw string) Version {
	fields := strings.Fields(raw)
	for _, f := range fields {
		if strings.Count(f, ".") >= 2 {
			return parsePostgresVersion(f)
		}
	}
	return Version{}
}
