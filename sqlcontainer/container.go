// Package sqlcontainer assembles parameterized SQL text against a
// dialect.Dialect: it owns the parameter naming contract every statement
// builder in this module follows, renders dialect-correct placeholders, and
// caches power-of-two "bucketed" templates for statements whose parameter
// count varies at runtime (IN (...) lists, multi-row INSERTs).
package sqlcontainer

import (
	"fmt"
	"strings"

	"github.com/nimbusdata/rdbx/dberr"
	"github.com/nimbusdata/rdbx/dialect"
)

// Kind tags which part of a statement a bound parameter belongs to, giving
// every parameter name a stable, collision-free prefix: w(here), k(ey),
// s(et), i(nsert column), v(alue row), j(oin condition), p(ositional/misc).
type Kind byte

const (
	KindWhere      Kind = 'w'
	KindKey        Kind = 'k'
	KindSet        Kind = 's'
	KindInsert     Kind = 'i'
	KindValue      Kind = 'v'
	KindJoin       Kind = 'j'
	KindPositional Kind = 'p'
)

// Name renders the parameter naming contract: kind letter followed by the
// parameter's zero-based ordinal within the whole statement, e.g. "w0",
// "k3", "v12". Names are unique per Container regardless of Kind, since the
// ordinal is the statement-wide bind position, not a per-kind counter.
func Name(kind Kind, ordinal int) string {
	return fmt.Sprintf("%c%d", kind, ordinal)
}

// Container incrementally assembles one statement's SQL text and its bound
// parameters against a single dialect.Dialect. It is not safe for concurrent
// use; callers build one Container per statement render.
type Container struct {
	d      dialect.Dialect
	sql    strings.Builder
	params []dialect.Parameter
}

// New returns an empty Container bound to d.
func New(d dialect.Dialect) *Container {
	return &Container{d: d}
}

// WriteSQL appends literal SQL text, unmodified.
func (c *Container) WriteSQL(sql string) *Container {
	c.sql.WriteString(sql)
	return c
}

// WriteIdentifier appends d.WrapIdentifier(name).
func (c *Container) WriteIdentifier(name string) *Container {
	c.sql.WriteString(c.d.WrapIdentifier(name))
	return c
}

// Bind creates a dialect-ready parameter for value, appends its marker to
// the SQL text and returns the marker (mainly for callers that need to
// place it somewhere other than immediately, e.g. inside a RETURNING
// fragment built elsewhere).
func (c *Container) Bind(kind Kind, semanticType dialect.SemanticType, value any) (string, error) {
	ordinal := len(c.params)
	name := Name(kind, ordinal)

	p, err := c.d.CreateParameter(name, semanticType, value)
	if err != nil {
		return "", fmt.Errorf("sqlcontainer: create parameter %s: %w", name, err)
	}

	marker := c.d.MakeParameterMarker(name, ordinal)
	c.params = append(c.params, p)
	c.sql.WriteString(marker)
	return marker, nil
}

// BindSlice renders a comma-separated list of markers for an IN (...)
// clause, one bound parameter per value, and writes it to the SQL text
// wrapped in parentheses.
func (c *Container) BindSlice(kind Kind, semanticType dialect.SemanticType, values []any) error {
	c.sql.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			c.sql.WriteByte(',')
		}
		if _, err := c.Bind(kind, semanticType, v); err != nil {
			return err
		}
	}
	c.sql.WriteByte(')')
	return nil
}

// CheckLimit returns dberr.ErrTooManyParameters if the Container has already
// bound more parameters than the dialect allows in one statement.
func (c *Container) CheckLimit() error {
	if limit := c.d.MaxParameters(); limit > 0 && len(c.params) > limit {
		return dberr.TooManyParameters(len(c.params), limit)
	}
	return nil
}

// SQL returns the assembled statement text.
func (c *Container) SQL() string { return c.sql.String() }

// Params returns the bound parameters in bind order.
func (c *Container) Params() []dialect.Parameter { return c.params }

// Len reports how many parameters have been bound so far.
func (c *Container) Len() int { return len(c.params) }
