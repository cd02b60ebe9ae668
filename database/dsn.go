package database

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/utils"
)

// BuildDSN renders the provider connection string for c's product. readOnly
// selects the dialect's read-only connection-string variant where one
// exists (SPEC_FULL.md §4.6's get_connection(intent) path).
func BuildDSN(c *Config, product dialect.Product, readOnly bool) (string, error) {
	switch product {
	case dialect.MySQL, dialect.MariaDB:
		return mysqlDSN(c), nil
	case dialect.PostgreSQL, dialect.CockroachDB:
		return postgresDSN(c, readOnly), nil
	case dialect.SqlServer:
		return sqlserverDSN(c, readOnly), nil
	case dialect.Oracle:
		return oracleDSN(c), nil
	case dialect.SQLite:
		return sqliteDSN(c, readOnly), nil
	case dialect.Firebird:
		return firebirdDSN(c), nil
	case dialect.DuckDB:
		return duckdbDSN(c, readOnly), nil
	default:
		return "", unknownDbType(c.Type)
	}
}

func mysqlDSN(c *Config) string {
	cfg := gomysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database
	cfg.Params = map[string]string{"sql_mode": "'TRADITIONAL,ANSI_QUOTES'"}

	if utils.IsUnixAddr(c.Host) {
		cfg.Net = "unix"
		cfg.Addr = c.Host
	} else {
		cfg.Net = "tcp"
		port := c.Port
		if port == 0 {
			port = 3306
		}
		cfg.Addr = utils.JoinHostPort(c.Host, port)
	}

	return cfg.FormatDSN()
}

func postgresDSN(c *Config, readOnly bool) string {
	uri := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Path:   "/" + url.PathEscape(c.Database),
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	query := url.Values{
		"host": {c.Host},
		"port": {strconv.Itoa(port)},
	}
	if c.TlsOptions.Enable {
		if c.TlsOptions.Insecure {
			query.Set("sslmode", "require")
		} else {
			query.Set("sslmode", "verify-full")
		}
	} else {
		query.Set("sslmode", "disable")
	}
	if readOnly {
		query.Set("options", "-c default_transaction_read_only=on")
	}

	uri.RawQuery = query.Encode()
	return uri.String()
}

func sqlserverDSN(c *Config, readOnly bool) string {
	uri := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(c.User, c.Password),
		Host:   utils.JoinHostPort(c.Host, portOrDefault(c.Port, 1433)),
	}

	query := url.Values{"database": {c.Database}}
	if readOnly {
		query.Set("ApplicationIntent", "ReadOnly")
	}
	if c.TlsOptions.Enable {
		query.Set("encrypt", "true")
		if c.TlsOptions.Insecure {
			query.Set("TrustServerCertificate", "true")
		}
	}

	uri.RawQuery = query.Encode()
	return uri.String()
}

func oracleDSN(c *Config) string {
	// godror accepts an "easy connect" string: user/pass@host:port/service.
	return fmt.Sprintf("%s/%s@%s:%d/%s", c.User, c.Password, c.Host, portOrDefault(c.Port, 1521), c.Database)
}

func sqliteDSN(c *Config, readOnly bool) string {
	var opts []string
	if readOnly {
		opts = append(opts, "mode=ro")
	}
	if len(opts) == 0 {
		return c.Database
	}
	return fmt.Sprintf("file:%s?%s", c.Database, strings.Join(opts, "&"))
}

func firebirdDSN(c *Config) string {
	return fmt.Sprintf("%s:%s@%s:%d/%s", c.User, c.Password, c.Host, portOrDefault(c.Port, 3050), c.Database)
}

func duckdbDSN(c *Config, readOnly bool) string {
	if !readOnly {
		return c.Database
	}
	return fmt.Sprintf("%s?access_mode=READ_ONLY", c.Database)
}

func portOrDefault(port, def int) int {
	if port == 0 {
		return def
	}
	return port
}

// IsIsolatedMemory reports whether database refers to a private, per-
// connection in-memory database (":memory:" with no shared-cache params),
// as opposed to a named shared-memory database.
func IsIsolatedMemory(database string) bool {
	if database == ":memory:" {
		return true
	}
	return strings.HasPrefix(database, "file:") && strings.Contains(database, "mode=memory") && !strings.Contains(database, "cache=shared")
}

// IsSharedMemory reports whether database refers to a named shared in-
// memory database reachable from multiple connections within the process.
func IsSharedMemory(database string) bool {
	return strings.Contains(database, "cache=shared") || strings.Contains(database, "Cache=Shared")
}
