package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// firebird targets github.com/nakagami/firebirdsql, the pure-Go wire-protocol
// driver for Firebird (there is no CGo-free alternative in active use, and
// this is the ecosystem's de facto standard driver for the product).
type firebird struct {
	base
}

// NewFirebird returns the Firebird dialect.
func NewFirebird() Dialect {
	return &firebird{base: base{
		product:      Firebird,
		name:         "firebird",
		marker:       "?",
		markerStyle:  Positional,
		maxParams:    1499,
		maxIdentLen:  31,
		lastInsertID: ViaReturningClause,
	}}
}

// CreateParameter applies Firebird's value-coercion rules: it has no BOOLEAN
// type before Firebird 3 and no native GUID type at all, so booleans travel
// as SMALLINT and GUIDs travel as their 16-byte binary form (stored in a
// CHAR(16) CHARACTER SET OCTETS column).
func (d *firebird) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	switch semanticType {
	case TypeBoolean:
		if b, ok := value.(bool); ok {
			if b {
				value = int16(1)
			} else {
				value = int16(0)
			}
		}
	case TypeGUID:
		if id, ok := value.(uuid.UUID); ok {
			b := id
			value = b[:]
		}
	}
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *firebird) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

func (d *firebird) UpsertIncomingColumn(column string) string {
	return "source." + d.WrapIdentifier(column)
}

func (d *firebird) ReturningClause(idColumn string) string {
	return "RETURNING " + d.WrapIdentifier(idColumn)
}

func (d *firebird) SessionSettings(readOnly bool) []string {
	if readOnly {
		return []string{"SET TRANSACTION READ ONLY"}
	}
	return nil
}

func (d *firebird) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		Merge:      info.Version.AtLeast(Version{Major: 2, Minor: 1}),
		Window:     info.Version.AtLeast(Version{Major: 3}),
		CTE:        info.Version.AtLeast(Version{Major: 2, Minor: 1}),
		Savepoints: true,
	}
}

func (d *firebird) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	const q = `SELECT rdb$get_context('SYSTEM', 'ENGINE_VERSION') FROM rdb$database`
	if err := conn.QueryRowContext(ctx, q).Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("firebird: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    Firebird,
		Name:       "Firebird",
		RawVersion: raw,
		Version:    parseFirebirdVersion(raw),
		Compliance: SQL2008,
	}
	d.storeInfo(info)
	return info, nil
}

// parseFirebirdVersion parses the "MAJOR.MINOR" reported by
// rdb$get_context('SYSTEM', 'ENGINE_VERSION'), e.g. "4.0".
func parseFirebirdVersion(raw string) Version {
	return parsePostgresVersion(strings.TrimSpace(raw))
}
