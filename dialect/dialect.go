// Package dialect implements the per-product SQL generation and capability
// layer: identifier quoting, parameter marker style, UPSERT/RETURNING
// rendering, session-settings scripts and version-gated capability flags,
// for each of the nine supported relational database families plus a
// SQL-92 fallback for unrecognized products.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Product tags a detected (or configured) database family.
type Product int

const (
	Unknown Product = iota
	SqlServer
	PostgreSQL
	CockroachDB
	Oracle
	MySQL
	MariaDB
	SQLite
	Firebird
	DuckDB
)

func (p Product) String() string {
	switch p {
	case SqlServer:
		return "sqlserver"
	case PostgreSQL:
		return "postgresql"
	case CockroachDB:
		return "cockroachdb"
	case Oracle:
		return "oracle"
	case MySQL:
		return "mysql"
	case MariaDB:
		return "mariadb"
	case SQLite:
		return "sqlite"
	case Firebird:
		return "firebird"
	case DuckDB:
		return "duckdb"
	default:
		return "unknown"
	}
}

// ComplianceLevel is the SQL-standard compliance level a detected product
// claims (or that we conservatively assume for the Sql92 fallback).
type ComplianceLevel int

const (
	SQL92 ComplianceLevel = iota
	SQL99
	SQL2003
	SQL2008
	SQL2011
	SQL2016
)

// Version is a parsed major.minor.patch server version triple.
type Version struct {
	Major, Minor, Patch int
}

// AtLeast reports whether v is greater than or equal to other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch >= other.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ProductInfo is filled once during first connect and is read-only
// thereafter; it is safe to share across goroutines without locking.
type ProductInfo struct {
	Product    Product
	Name       string
	RawVersion string
	Version    Version
	Compliance ComplianceLevel
}

// Capabilities are version-gated feature flags. A failed detection (see
// DetectProduct) leaves every flag false, which is always a safe default.
type Capabilities struct {
	Merge               bool
	JSON                bool
	Window              bool
	CTE                 bool
	InsertOnConflict    bool
	OnDuplicateKey      bool
	Savepoints          bool
	SetValuedParameters bool
}

// ParameterMarkerStyle distinguishes dialects whose markers carry a stable
// name (`@foo`, `:foo`) from those whose markers are purely positional
// (`?`, `$1`).
type ParameterMarkerStyle int

const (
	Named ParameterMarkerStyle = iota
	Positional
)

// SemanticType is the portable value-type tag a ColumnDescriptor carries;
// Dialect.CreateParameter maps it onto whatever the provider driver expects.
type SemanticType int

const (
	TypeBoolean SemanticType = iota
	TypeInt16
	TypeInt32
	TypeInt64
	TypeDecimal
	TypeString
	TypeGUID
	TypeDateTime
	TypeBinary
	TypeJSON
	TypeEnum
)

// Parameter is a provider-agnostic bound parameter produced by
// Dialect.CreateParameter; the sqlcontainer package renders it using the
// dialect's marker style.
type Parameter struct {
	Name      string
	Value     any
	Type      SemanticType
	Size      int
	Precision int
	Scale     int
}

// LastInsertIDStrategy enumerates how a generated surrogate id is retrieved
// after an INSERT when the dialect has no usable RETURNING/OUTPUT clause
// (or the caller didn't ask for one).
type LastInsertIDStrategy int

const (
	NoLastInsertID LastInsertIDStrategy = iota
	ViaReturningClause
	ViaScopeIdentity
	ViaLastInsertID
	ViaLastInsertRowID
	ViaSequencePrefetch
	ViaCorrelationToken
)

// Dialect is the per-product strategy for SQL generation and capability
// flags. Implementations are immutable after DetectProduct has been called
// once and are safe to share across goroutines without locking.
type Dialect interface {
	Product() Product
	ProductInfo() ProductInfo

	ParameterMarkerStyle() ParameterMarkerStyle
	MaxParameters() int
	MaxIdentifierLength() int

	// WrapIdentifier splits name on ".", strips any existing quotes from
	// each segment, re-wraps non-empty segments with the dialect's quote
	// pair, and rejoins with ".".
	WrapIdentifier(name string) string

	// MakeParameterMarker produces the provider-specific placeholder for a
	// parameter at the given zero-based ordinal. Positional-only dialects
	// ignore name and return the positional marker for ordinal.
	MakeParameterMarker(name string, ordinal int) string

	// CreateParameter maps a semantic type and value to a provider-ready
	// Parameter, applying the dialect's value coercion rules.
	CreateParameter(name string, semanticType SemanticType, value any) (Parameter, error)

	// BuildBatchInsertSQL emits a multi-row INSERT for n rows of columns
	// into table.
	BuildBatchInsertSQL(table string, columns []string, rows int) string

	// UpsertIncomingColumn returns the reference to the "incoming" row
	// inside an UPSERT statement's UPDATE SET clause.
	UpsertIncomingColumn(column string) string

	// ReturningClause renders the dialect's clause for reading back idColumn
	// from an INSERT/UPSERT in the same round-trip, or "" if unsupported.
	ReturningClause(idColumn string) string

	// SessionSettings returns the canonical SET/PRAGMA/ALTER SESSION script
	// to run once per physical connection. readOnly selects the read-only
	// variant where the dialect has one.
	SessionSettings(readOnly bool) []string

	// SavepointSQL, ReleaseSavepointSQL and RollbackToSavepointSQL render the
	// statements a Tx issues for nested savepoints. Callers must check
	// Capabilities().Savepoints first; dialects that don't support release
	// (SQL Server) make ReleaseSavepointSQL a harmless no-op statement.
	SavepointSQL(name string) string
	ReleaseSavepointSQL(name string) string
	RollbackToSavepointSQL(name string) string

	LastInsertIDStrategy() LastInsertIDStrategy

	Capabilities() Capabilities

	// DetectProduct runs version queries against conn, parses the result
	// into a ProductInfo and returns it. It also stores the result on the
	// receiver, so ProductInfo and Capabilities reflect it afterwards.
	DetectProduct(ctx context.Context, conn *sql.Conn) (ProductInfo, error)
}

// Registry resolves a detected/configured Product to its Dialect and caches
// one ProductInfo per physical Context after first detection. Reads are
// lock-free after the first successful detection; the Registry itself is
// built once at Context construction and never mutated concurrently with
// reads other than the one detection race, which sync.Once serializes.
type Registry struct {
	dialects map[Product]Dialect

	mu   sync.Mutex
	once map[Product]*sync.Once
	info map[Product]ProductInfo
}

// NewRegistry returns a Registry pre-populated with every built-in Dialect.
func NewRegistry() *Registry {
	r := &Registry{
		dialects: map[Product]Dialect{
			SqlServer:   NewSqlServer(),
			PostgreSQL:  NewPostgres(),
			CockroachDB: NewCockroach(),
			Oracle:      NewOracle(),
			MySQL:       NewMySQL(),
			MariaDB:     NewMariaDB(),
			SQLite:      NewSQLite(),
			Firebird:    NewFirebird(),
			DuckDB:      NewDuckDB(),
			Unknown:     NewSql92(),
		},
		once: make(map[Product]*sync.Once),
		info: make(map[Product]ProductInfo),
	}
	for p := range r.dialects {
		r.once[p] = &sync.Once{}
	}
	return r
}

// Lookup returns the Dialect registered for product, falling back to the
// SQL-92 dialect if product is not one of the nine known families.
func (r *Registry) Lookup(product Product) Dialect {
	if d, ok := r.dialects[product]; ok {
		return d
	}
	return r.dialects[Unknown]
}

// Detect runs DetectProduct for product exactly once per Registry and
// caches the result. If detection fails, the Sql92 fallback dialect and an
// Unknown ProductInfo are cached instead, and the error is returned so the
// caller can log a warning; subsequent calls do not retry.
func (r *Registry) Detect(ctx context.Context, product Product, conn *sql.Conn) (Dialect, ProductInfo, error) {
	d := r.Lookup(product)

	var detectErr error
	r.once[product].Do(func() {
		info, err := d.DetectProduct(ctx, conn)
		if err != nil {
			detectErr = err
			info = ProductInfo{Product: Unknown, Name: "unknown", Compliance: SQL92}
			d = r.dialects[Unknown]
		}

		r.mu.Lock()
		r.info[product] = info
		r.mu.Unlock()
	})

	r.mu.Lock()
	info := r.info[product]
	r.mu.Unlock()

	return d, info, detectErr
}

// splitIdentifierSegments splits a possibly schema-qualified identifier on
// "." and strips pre-existing quote characters from each segment, leaving
// quoting to the caller's WrapIdentifier implementation.
func splitIdentifierSegments(name string, quoteOpen, quoteClose byte) []string {
	var segments []string
	start := 0
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			segments = append(segments, stripQuotes(name[start:i], quoteOpen, quoteClose))
			start = i + 1
		}
	}
	segments = append(segments, stripQuotes(name[start:], quoteOpen, quoteClose))
	return segments
}

func stripQuotes(s string, quoteOpen, quoteClose byte) string {
	if len(s) >= 2 && s[0] == quoteOpen && s[len(s)-1] == quoteClose {
		return s[1 : len(s)-1]
	}
	return s
}

// wrapANSI re-joins name's "."-separated segments, each wrapped in ANSI
// double quotes, which is the quoting convention shared by every dialect in
// this package (see SPEC_FULL.md §4.2 for why: SQL Server forces
// QUOTED_IDENTIFIER ON and MySQL/MariaDB force ANSI_QUOTES ON via session
// settings, so all nine products present the same ANSI quoting surface).
func wrapANSI(name string) string {
	segments := splitIdentifierSegments(name, '"', '"')
	out := make([]byte, 0, len(name)+2*len(segments))
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if i > 0 && len(out) > 0 {
			out = append(out, '.')
		}
		out = append(out, '"')
		out = append(out, seg...)
		out = append(out, '"')
	}
	return string(out)
}
