package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// mysql targets github.com/go-sql-driver/mysql. MariaDB (mariadb.go) embeds
// this dialect since it speaks the same wire protocol and accepts the same
// "?" positional markers, differing in its ON DUPLICATE KEY alias support
// and version string grammar.
type mysql struct {
	base
}

// NewMySQL returns the MySQL dialect.
func NewMySQL() Dialect {
	return &mysql{base: base{
		product:      MySQL,
		name:         "mysql",
		marker:       "?",
		markerStyle:  Positional,
		maxParams:    65535,
		maxIdentLen:  64,
		lastInsertID: ViaLastInsertID,
	}}
}

func (d *mysql) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	if semanticType == TypeGUID {
		if id, ok := value.(uuid.UUID); ok {
			value = id.String()
		}
	}
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *mysql) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

// UpsertIncomingColumn prefers the MySQL 8.0.19+ `AS new_values` row alias
// over the deprecated `VALUES(col)` function, gated by detected version;
// see upsertIncomingColumnFor below, which both mysql and mariadb share.
func (d *mysql) UpsertIncomingColumn(column string) string {
	return upsertIncomingColumnFor(d, column)
}

func upsertIncomingColumnFor(d Dialect, column string) string {
	if d.Capabilities().OnDuplicateKey && supportsRowAlias(d) {
		return "new_values." + d.WrapIdentifier(column)
	}
	return fmt.Sprintf("VALUES(%s)", d.WrapIdentifier(column))
}

func supportsRowAlias(d Dialect) bool {
	info := d.ProductInfo()
	switch d.Product() {
	case MySQL:
		return info.Version.AtLeast(Version{Major: 8, Minor: 0, Patch: 19})
	case MariaDB:
		// MariaDB never adopted the `AS new_values` row-alias form; it stays
		// on VALUES(col) across every released version.
		return false
	default:
		return false
	}
}

func (d *mysql) ReturningClause(idColumn string) string { return "" }

func (d *mysql) SessionSettings(readOnly bool) []string {
	settings := []string{
		"SET SESSION sql_mode = CONCAT(@@sql_mode, ',ANSI_QUOTES')",
		"SET SESSION time_zone = '+00:00'",
	}
	if readOnly {
		settings = append(settings, "SET SESSION TRANSACTION READ ONLY")
	}
	return settings
}

func (d *mysql) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		JSON:             info.Version.AtLeast(Version{Major: 5, Minor: 7}),
		Window:           info.Version.AtLeast(Version{Major: 8}),
		CTE:              info.Version.AtLeast(Version{Major: 8}),
		OnDuplicateKey:   true,
		Savepoints:       true,
		InsertOnConflict: false,
	}
}

func (d *mysql) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("mysql: detect version: %w", err)
	}
	if strings.Contains(strings.ToLower(raw), "mariadb") {
		info := ProductInfo{
			Product:    MariaDB,
			Name:       "MariaDB",
			RawVersion: raw,
			Version:    parseMysqlVersion(raw),
			Compliance: SQL2008,
		}
		d.storeInfo(info)
		return info, nil
	}
	info := ProductInfo{
		Product:    MySQL,
		Name:       "MySQL",
		RawVersion: raw,
		Version:    parseMysqlVersion(raw),
		Compliance: SQL2008,
	}
	d.storeInfo(info)
	return info, nil
}

// parseMysqlVersion pulls the leading "MAJOR.MINOR.PATCH" out of a
// `SELECT VERSION()` string such as "8.0.36-0ubuntu0.22.04.1" or
// "10.11.6-MariaDB-0+deb12u1".
func parseMysqlVersion(raw string) Version {
	head := raw
	if i := strings.IndexByte(raw, '-'); i >= 0 {
		head = raw[:i]
	}
	return parsePostgresVersion(head)
}
