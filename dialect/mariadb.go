package dialect

import (
	"context"
	"database/sql"
	"fmt"
)

// mariadb embeds mysql: MariaDB speaks the MySQL wire protocol and accepts
// github.com/go-sql-driver/mysql unmodified. It differs only in capability
// flags (no window functions/CTEs before 10.2, no JSON type, keeps the
// deprecated VALUES(col) upsert form forever, see supportsRowAlias) and its
// own `SELECT VERSION()` grammar, which always carries a "-MariaDB" suffix.
type mariadb struct {
	mysql
}

// NewMariaDB returns the MariaDB dialect.
func NewMariaDB() Dialect {
	m := &mariadb{}
	m.base = base{
		product:      MariaDB,
		name:         "mariadb",
		marker:       "?",
		markerStyle:  Positional,
		maxParams:    65535,
		maxIdentLen:  64,
		lastInsertID: ViaLastInsertID,
	}
	return m
}

func (d *mariadb) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		JSON:             false,
		Window:           info.Version.AtLeast(Version{Major: 10, Minor: 2}),
		CTE:              info.Version.AtLeast(Version{Major: 10, Minor: 2}),
		OnDuplicateKey:   true,
		Savepoints:       true,
		InsertOnConflict: false,
	}
}

func (d *mariadb) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("mariadb: detect version: %w", err)
	}
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
