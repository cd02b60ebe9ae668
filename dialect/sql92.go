package dialect

import (
	"context"
	"database/sql"
	"fmt"
)

// sql92 is the conservative fallback used for Unknown products and for any
// product whose detection query failed. Every capability flag is false and
// every value is passed through unchanged; callers that need dialect-specific
// behavior should treat a sql92 Dialect as "proceed with extreme caution".
type sql92 struct {
	base
}

// NewSql92 returns the ANSI SQL-92 fallback dialect.
func NewSql92() Dialect {
	return &sql92{base: base{
		product:      Unknown,
		name:         "unknown",
		marker:       "?",
		markerStyle:  Positional,
		maxParams:    999,
		maxIdentLen:  128,
		lastInsertID: NoLastInsertID,
	}}
}

func (d *sql92) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *sql92) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

func (d *sql92) UpsertIncomingColumn(column string) string {
	return d.WrapIdentifier(column)
}

func (d *sql92) ReturningClause(idColumn string) string { return "" }

func (d *sql92) SessionSettings(readOnly bool) []string { return nil }

func (d *sql92) Capabilities() Capabilities { return Capabilities{} }

func (d *sql92) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	info := ProductInfo{Product: Unknown, Name: "unknown", Compliance: SQL92}
	d.storeInfo(info)
	return info, fmt.Errorf("sql92: product detection not applicable to the fallback dialect")
}
