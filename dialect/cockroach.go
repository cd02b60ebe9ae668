package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// cockroach embeds postgres: CockroachDB speaks the PostgreSQL wire protocol
// and accepts the same "$N" markers, RETURNING clause and ON CONFLICT
// syntax, so github.com/lib/pq serves both. Only the capability set and
// version-string grammar differ (CockroachDB reports its own version via
// `SELECT version()`, not `SHOW server_version`, and has no MERGE statement).
type cockroach struct {
	postgres
}

// NewCockroach returns the CockroachDB dialect.
func NewCockroach() Dialect {
	c := &cockroach{}
	c.base = base{
		product:       CockroachDB,
		name:          "cockroachdb",
		marker:        "$",
		markerStyle:   Positional,
		ordinalMarker: true,
		maxParams:     65535,
		maxIdentLen:   128,
		lastInsertID:  ViaReturningClause,
	}
	return c
}

func (d *cockroach) Capabilities() Capabilities {
	return Capabilities{
		JSON:                true,
		Window:              true,
		CTE:                 true,
		InsertOnConflict:    true,
		Savepoints:          true,
		SetValuedParameters: true,
		Merge:               false,
	}
}

func (d *cockroach) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "SELECT version()").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("cockroachdb: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    CockroachDB,
		Name:       "CockroachDB",
		RawVersion: raw,
		Version:    parseCockroachVersion(raw),
		Compliance: SQL2011,
	}
	d.storeInfo(info)
	return info, nil
}

// parseCockroachVersion pulls "MAJOR.MINOR.PATCH" out of a `SELECT version()`
// string such as "CockroachDB CCL v23.2.4 (x86_64-pc-linux-gnu, ...)".
func parseCockroachVersion(raw string) Version {
	fields := strings.Fields(raw)
	for _, f := range fields {
		if strings.HasPrefix(f, "v") && strings.Contains(f, ".") {
			return parsePostgresVersion(strings.TrimPrefix(f, "v"))
		}
	}
	return Version{}
}
