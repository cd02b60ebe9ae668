package dialect

import (
	"fmt"
	"sync/atomic"
)

// base holds the state shared by every concrete Dialect: the lazily
// detected ProductInfo (filled once by DetectProduct, read lock-free
// thereafter) and the static per-product facts that never depend on the
// server's reported version.
type base struct {
	product     Product
	name        string
	info        atomic.Pointer[ProductInfo]
	marker      string
	markerStyle ParameterMarkerStyle
	// ordinalMarker is true for positional dialects whose marker carries the
	// 1-based ordinal (PostgreSQL/CockroachDB "$N", Oracle ":N"); false for
	// dialects whose positional marker never varies (MySQL/MariaDB/SQLite/
	// SQL Server's "?").
	ordinalMarker bool
	maxParams     int
	maxIdentLen   int
	lastInsertID  LastInsertIDStrategy
}

func (b *base) Product() Product { return b.product }

func (b *base) ProductInfo() ProductInfo {
	if p := b.info.Load(); p != nil {
		return *p
	}
	return ProductInfo{Product: b.product, Name: b.name, Compliance: SQL92}
}

// storeInfo records a freshly detected ProductInfo. Safe to call
// concurrently; the last writer wins, which is fine since all callers
// detected the same physical server.
func (b *base) storeInfo(info ProductInfo) { b.info.Store(&info) }

func (b *base) ParameterMarkerStyle() ParameterMarkerStyle { return b.markerStyle }
func (b *base) MaxParameters() int                         { return b.maxParams }
func (b *base) MaxIdentifierLength() int                   { return b.maxIdentLen }
func (b *base) LastInsertIDStrategy() LastInsertIDStrategy  { return b.lastInsertID }

func (b *base) WrapIdentifier(name string) string { return wrapANSI(name) }

// namedMarker renders `marker + name` for named-parameter dialects.
func (b *base) namedMarker(name string) string { return b.marker + name }

func (b *base) MakeParameterMarker(name string, ordinal int) string {
	if b.markerStyle == Positional {
		if b.ordinalMarker {
			return fmt.Sprintf("%s%d", b.marker, ordinal+1)
		}
		return b.marker
	}
	return b.namedMarker(name)
}

// SavepointSQL renders the ANSI `SAVEPOINT name` form every dialect but SQL
// Server accepts as-is.
func (b *base) SavepointSQL(name string) string { return "SAVEPOINT " + name }

// ReleaseSavepointSQL renders the ANSI `RELEASE SAVEPOINT name` form.
func (b *base) ReleaseSavepointSQL(name string) string { return "RELEASE SAVEPOINT " + name }

// RollbackToSavepointSQL renders the ANSI `ROLLBACK TO SAVEPOINT name` form.
func (b *base) RollbackToSavepointSQL(name string) string { return "ROLLBACK TO SAVEPOINT " + name }

// buildStandardBatchInsertSQL renders the ANSI multi-row
// `INSERT INTO t (cols) VALUES (...), (...), ...` form shared by every
// dialect except Oracle (Oracle lacks multi-row VALUES and uses INSERT ALL
// instead, see oracle.go).
func buildStandardBatchInsertSQL(d Dialect, table string, columns []string, rows int) string {
	quotedTable := d.WrapIdentifier(table)
	quotedCols := make([]byte, 0, 64)
	for i, c := range columns {
		if i > 0 {
			quotedCols = append(quotedCols, ',')
		}
		quotedCols = append(quotedCols, d.WrapIdentifier(c)...)
	}

	row := func(rowIdx int) string {
		s := "("
		for i := range columns {
			if i > 0 {
				s += ","
			}
			name := fmt.Sprintf("p%d", rowIdx*len(columns)+i)
			s += d.MakeParameterMarker(name, rowIdx*len(columns)+i)
		}
		return s + ")"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quotedTable, quotedCols)
	for r := 0; r < rows; r++ {
		if r > 0 {
			sql += ","
		}
		sql += row(r)
	}
	return sql
}
