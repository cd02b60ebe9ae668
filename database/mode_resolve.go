package database

import "github.com/nimbusdata/rdbx/dialect"

// modeDecision is the outcome of ResolveMode: the mode the Context will
// actually use, whether it differs from what was requested, and whether
// that difference was mandatory (coerced) or merely a logged mismatch
// warning (the caller's choice is honored either way unless mandatory).
type modeDecision struct {
	Mode     Mode
	Coerced  bool
	Required bool
	Reason   string
}

// ResolveMode implements the deterministic mode-selection table of
// SPEC_FULL.md §4.6. requested == ModeBest means "pick the safest
// functional mode"; any other requested mode is honored unless correctness
// requires a different one, in which case it is coerced and Required is
// true.
func ResolveMode(requested Mode, product dialect.Product, c *Config) modeDecision {
	best, reason := bestMode(product, c)

	if requested == ModeBest {
		return modeDecision{Mode: best, Reason: reason}
	}

	if required, why := requiredMode(product, c); required != ModeBest && required != requested {
		return modeDecision{Mode: required, Coerced: true, Required: true, Reason: why}
	}

	if requested != best {
		return modeDecision{
			Mode:    requested,
			Coerced: false,
			Reason:  "honoring requested mode " + requested.String() + " though " + best.String() + " would be safer/optimal",
		}
	}

	return modeDecision{Mode: requested}
}

// bestMode is the "Best ->" column of SPEC_FULL.md §4.6's table.
func bestMode(product dialect.Product, c *Config) (Mode, string) {
	switch product {
	case dialect.SQLite, dialect.DuckDB:
		switch {
		case IsIsolatedMemory(c.Database):
			return ModeSingleConnection, "isolated in-memory database: each connection is its own database"
		case IsSharedMemory(c.Database):
			return ModeSingleWriter, "shared in-memory database: one-writer-at-a-time under concurrent shared access"
		default:
			return ModeSingleWriter, "file-based database: one-writer-at-a-time avoids SQLITE_BUSY/writer contention"
		}
	case dialect.SqlServer:
		if isLocalDB(c.Host) {
			return ModeKeepAlive, "SQL Server LocalDB instance shuts down once idle without a keep-alive connection"
		}
		return ModeStandard, "remote SQL Server: provider pool handles concurrency"
	case dialect.Firebird:
		if isFirebirdEmbedded(c) {
			return ModeSingleConnection, "Firebird embedded: single-process, single-connection engine"
		}
		return ModeStandard, "remote Firebird server: provider pool handles concurrency"
	default:
		return ModeStandard, "remote server database: provider pool handles concurrency"
	}
}

// requiredMode returns the mode mandated by correctness (not merely
// recommended), or ModeBest if no mode is mandatory for product/config.
func requiredMode(product dialect.Product, c *Config) (Mode, string) {
	switch product {
	case dialect.SQLite, dialect.DuckDB:
		if IsIsolatedMemory(c.Database) {
			return ModeSingleConnection, "isolated in-memory database requires pinning the single connection that owns it"
		}
	case dialect.Firebird:
		if isFirebirdEmbedded(c) {
			return ModeSingleConnection, "Firebird embedded requires pinning the single connection that owns it"
		}
	}
	return ModeBest, ""
}

func isLocalDB(host string) bool {
	return len(host) >= 8 && host[:8] == "(localdb"
}

// isFirebirdEmbedded reports whether c addresses a local embedded Firebird
// database file rather than a remote fbserver instance.
func isFirebirdEmbedded(c *Config) bool {
	return c.Host == ""
}
