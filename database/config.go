package database

import (
	"github.com/nimbusdata/rdbx/config"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/pkg/errors"
)

// Mode pins how a Context shares its underlying physical connection(s), as
// resolved by ResolveMode (see SPEC_FULL.md §4.6).
type Mode int

const (
	// ModeBest asks ResolveMode to pick the safest functional mode for the
	// detected product and connection string. It is never a Context's
	// resolved mode, only ever a requested one.
	ModeBest Mode = iota

	// ModeStandard pools ordinary provider connections with no pinning.
	ModeStandard

	// ModeKeepAlive pins one persistent connection (e.g. for a SQL Server
	// LocalDB instance that would otherwise shut down once idle) but still
	// allows ephemeral connections alongside it.
	ModeKeepAlive

	// ModeSingleWriter serializes all writes through one persistent
	// connection under the Context's ModeLock, while reads use ephemeral,
	// possibly read-only, connections from the read Governor. Readers are
	// not held back while a writer waits for the ModeLock.
	ModeSingleWriter

	// ModeSingleConnection pins the one and only connection the database
	// will ever see (isolated in-memory SQLite/DuckDB, Firebird embedded).
	ModeSingleConnection
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeKeepAlive:
		return "keep-alive"
	case ModeSingleWriter:
		return "single-writer"
	case ModeSingleConnection:
		return "single-connection"
	default:
		return "best"
	}
}

// productAliases maps legacy and convenience spellings onto the canonical
// dialect.Product.String() values used everywhere else in the config.
var productAliases = map[string]dialect.Product{
	"mysql":       dialect.MySQL,
	"mariadb":     dialect.MariaDB,
	"pgsql":       dialect.PostgreSQL,
	"postgres":    dialect.PostgreSQL,
	"postgresql":  dialect.PostgreSQL,
	"cockroach":   dialect.CockroachDB,
	"cockroachdb": dialect.CockroachDB,
	"oracle":      dialect.Oracle,
	"sqlite":      dialect.SQLite,
	"sqlite3":     dialect.SQLite,
	"firebird":    dialect.Firebird,
	"duckdb":      dialect.DuckDB,
	"sqlserver":   dialect.SqlServer,
	"mssql":       dialect.SqlServer,
}

// ParseProduct resolves a Config.Type string to its dialect.Product.
func ParseProduct(t string) (dialect.Product, error) {
	if p, ok := productAliases[t]; ok {
		return p, nil
	}
	return dialect.Unknown, unknownDbType(t)
}

// Config defines database client configuration.
type Config struct {
	Type       string     `yaml:"type" env:"TYPE" default:"mysql"`
	Host       string     `yaml:"host" env:"HOST"`
	Port       int        `yaml:"port" env:"PORT"`
	Database   string     `yaml:"database" env:"DATABASE"`
	User       string     `yaml:"user" env:"USER"`
	Password   string     `yaml:"password" env:"PASSWORD,unset"` // #nosec G117 -- exported password field
	TlsOptions config.TLS `yaml:",inline"`

	// Mode requests a connection-sharing mode; "best" (the default) lets
	// ResolveMode pick the safest functional mode for the detected product.
	Mode string `yaml:"mode" env:"MODE" default:"best"`

	// PoolKey is loaded from YAML/env and kept on the Config, but neither
	// BuildDSN nor NewContext reads it, so it does not keep two Contexts
	// against the same DSN in separate pools.
	PoolKey string `yaml:"pool_key" env:"POOL_KEY"`

	Options Options `yaml:"options" envPrefix:"OPTIONS_"`
}

// Validate checks constraints in the supplied database configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if _, err := ParseProduct(c.Type); err != nil {
		return err
	}

	if err := c.parseMode(); err != nil {
		return err
	}

	product, _ := ParseProduct(c.Type)
	if c.Host == "" && product != dialect.SQLite && product != dialect.DuckDB && product != dialect.Firebird {
		return errors.New("database host missing")
	}

	if c.Database == "" {
		return errors.New("database name (or file path) missing")
	}

	return c.Options.Validate()
}

func (c *Config) parseMode() error {
	switch c.Mode {
	case "", "best":
	case "standard", "keep-alive", "single-writer", "single-connection":
	default:
		return errors.Errorf(`unknown mode %q, must be one of: "best", "standard", "keep-alive", "single-writer", "single-connection"`, c.Mode)
	}
	return nil
}

// requestedMode parses Config.Mode, defaulting to ModeBest.
func (c *Config) requestedMode() Mode {
	switch c.Mode {
	case "standard":
		return ModeStandard
	case "keep-alive":
		return ModeKeepAlive
	case "single-writer":
		return ModeSingleWriter
	case "single-connection":
		return ModeSingleConnection
	default:
		return ModeBest
	}
}

func unknownDbType(t string) error {
	return errors.Errorf("unknown database type %q", t)
}
