package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// sqlserver targets github.com/denisenkom/go-mssqldb.
type sqlserver struct {
	base
}

// NewSqlServer returns the SQL Server dialect.
func NewSqlServer() Dialect {
	return &sqlserver{base: base{
		product:      SqlServer,
		name:         "sqlserver",
		marker:       "@p",
		markerStyle:  Named,
		maxParams:    2098,
		maxIdentLen:  128,
		lastInsertID: ViaScopeIdentity,
	}}
}

func (d *sqlserver) CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error) {
	return Parameter{Name: name, Value: value, Type: semanticType}, nil
}

func (d *sqlserver) BuildBatchInsertSQL(table string, columns []string, rows int) string {
	return buildStandardBatchInsertSQL(d, table, columns, rows)
}

// UpsertIncomingColumn references the MERGE statement's `source` alias; the
// gateway names the USING(...) subquery "source" for every product that uses
// MERGE (SQL Server, Oracle, Firebird).
func (d *sqlserver) UpsertIncomingColumn(column string) string {
	return "source." + d.WrapIdentifier(column)
}

// ReturningClause renders the OUTPUT INSERTED.col fragment, which SQL Server
// requires placed before VALUES in an INSERT. gateway.Create does not use it:
// SQL Server's LastInsertIDStrategy is ViaScopeIdentity, so Create reads the
// id through sql.Result.LastInsertId.
func (d *sqlserver) ReturningClause(idColumn string) string {
	return "OUTPUT INSERTED." + d.WrapIdentifier(idColumn)
}

func (d *sqlserver) SessionSettings(readOnly bool) []string {
	settings := []string{
		"SET QUOTED_IDENTIFIER ON",
		"SET ANSI_NULLS ON",
	}
	if readOnly {
		settings = append(settings, "SET TRANSACTION ISOLATION LEVEL READ UNCOMMITTED")
	}
	return settings
}

// SavepointSQL uses SAVE TRANSACTION, the T-SQL equivalent of SAVEPOINT.
func (d *sqlserver) SavepointSQL(name string) string { return "SAVE TRANSACTION " + name }

// ReleaseSavepointSQL is a no-op: SQL Server has no explicit savepoint
// release, a save point is simply superseded by the next one or the
// enclosing transaction's commit/rollback.
func (d *sqlserver) ReleaseSavepointSQL(name string) string { return "" }

func (d *sqlserver) RollbackToSavepointSQL(name string) string {
	return "ROLLBACK TRANSACTION " + name
}

func (d *sqlserver) Capabilities() Capabilities {
	info := d.ProductInfo()
	return Capabilities{
		Merge:               true,
		JSON:                info.Version.AtLeast(Version{Major: 16}),
		Window:              true,
		CTE:                 true,
		Savepoints:          true,
		SetValuedParameters: true,
	}
}

func (d *sqlserver) DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error) {
	var raw string
	if err := conn.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&raw); err != nil {
		return ProductInfo{}, fmt.Errorf("sqlserver: detect version: %w", err)
	}
	info := ProductInfo{
		Product:    SqlServer,
		Name:       "Microsoft SQL Server",
		RawVersion: raw,
		Version:    parseSqlServerVersion(raw),
		Compliance: SQL2011,
	}
	d.storeInfo(info)
	return info, nil
}

// parseSqlServerVersion pulls "MAJOR.MINOR.BUILD.REVISION" out of an
// @@VERSION string such as "Microsoft SQL Server 2022 (RTM) - 16.0.1000.6 ...".
func parseSqlServerVersion(raw string) Version {
	fields := strings.Fields(raw)
	for i, f := range fields {
		if strings.Count(f, ".") >= 2 {
			return parsePostgresVersion(f)
		}
		if f == "-" && i+1 < len(fields) {
			continue
		}
	}
	// Fall back to the marketing year, e.g. "2022", mapped to its known
	// engine major version; used only for the rare build that omits the
	// dotted version token entirely.
	for _, f := range fields {
		if year, err := strconv.Atoi(f); err == nil && year >= 2000 {
			return Version{Major: sqlServerMajorForYear(year)}
		}
	}
	return Version{}
}

func sqlServerMajorForYear(year int) int {
	switch {
	case year >= 2022:
		return 16
	case year >= 2019:
		return 15
	case year >= 2017:
		return 14
	case year >= 2016:
		return 13
	default:
		return 12
	}
}
