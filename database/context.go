package database

import (
	"context"
	gosql "database/sql"
	"sync"

	"github.com/nimbusdata/rdbx/dberr"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/nimbusdata/rdbx/logging"
	"github.com/nimbusdata/rdbx/sqlcontainer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Intent tags whether a connection is being acquired to read or to write,
// determining which Governor permit pool it draws from and, in SingleWriter
// mode, which connection string variant it dials.
type Intent int

const (
	Read Intent = iota
	Write
)

// Context is the entry point for one logical database: it owns the
// detected dialect, the resolved sharing Mode, the pool governors and mode
// lock, and (for KeepAlive/SingleWriter/SingleConnection) the one pinned
// persistent connection. See SPEC_FULL.md §4.6.
type Context struct {
	cfg     *Config
	product dialect.Product
	mode    Mode
	d       dialect.Dialect

	db     *gosql.DB
	logger *logging.Logger

	readGov  *Governor
	writeGov *Governor
	modeLock *ModeLock

	// persistent is the one pinned connection KeepAlive/SingleWriter/
	// SingleConnection hold for the Context's lifetime. In KeepAlive mode it
	// is a pure sentinel (keeps e.g. a LocalDB instance from shutting down)
	// and GetConnection never hands it out; in SingleConnection mode every
	// GetConnection call returns it; in SingleWriter mode only Write intent
	// does.
	persistent *TrackedConnection

	counters  Counters
	onMetrics func(Metrics)

	disposeOnce sync.Once

	snapshotOnce sync.Once
	snapshotErr  error
}

// NewContext parses cfg, opens the underlying *sql.DB, resolves the sharing
// mode, and (for KeepAlive/SingleWriter/SingleConnection) pins the one
// persistent connection the mode requires.
func NewContext(ctx context.Context, cfg *Config, logger *logging.Logger) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	product, err := ParseProduct(cfg.Type)
	if err != nil {
		return nil, err
	}

	decision := ResolveMode(cfg.requestedMode(), product, cfg)
	logMode(logger, cfg.requestedMode(), decision)

	dsn, err := BuildDSN(cfg, product, false)
	if err != nil {
		return nil, err
	}

	d := dialect.NewRegistry().Lookup(product)

	db, err := gosql.Open(driverNameFor(product), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "can't open database")
	}

	if cfg.Options.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.Options.MaxConnections)
		db.SetMaxIdleConns(cfg.Options.MaxConnections / 3)
	}

	readMax, writeMax := int64(cfg.Options.MaxConnections), int64(cfg.Options.MaxConnections)
	if decision.Mode == ModeSingleWriter {
		writeMax = 1
	}

	c := &Context{
		cfg:      cfg,
		product:  product,
		mode:     decision.Mode,
		d:        d,
		db:       db,
		logger:   logger,
		readGov:  NewGovernor(ctx, readMax, 0, 0),
		writeGov: NewGovernor(ctx, 0, writeMax, 0),
		modeLock: NewModeLock(0),
	}

	if decision.Mode == ModeKeepAlive || decision.Mode == ModeSingleWriter || decision.Mode == ModeSingleConnection {
		release, err := c.writeGov.AcquireWrite(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		conn, err := db.Conn(ctx)
		if err != nil {
			release()
			_ = db.Close()
			return nil, err
		}

		// The persistent connection consumes its write-permit for the
		// Context's entire lifetime rather than per call; release is
		// deliberately never invoked here.
		c.persistent = NewTrackedConnection(conn, d, true, false)
	}

	return c, nil
}

func logMode(logger *logging.Logger, requested Mode, decision modeDecision) {
	switch {
	case decision.Coerced:
		logger.Warnw("Coercing connection-sharing mode for correctness",
			zap.String("requested", requested.String()),
			zap.String("resolved", decision.Mode.String()),
			zap.String("reason", decision.Reason))
	case requested != ModeBest && decision.Reason != "":
		logger.Warnw("Requested connection-sharing mode may be suboptimal",
			zap.String("requested", requested.String()),
			zap.String("note", decision.Reason))
	default:
		logger.Debugw("Resolved connection-sharing mode",
			zap.String("mode", decision.Mode.String()), zap.String("reason", decision.Reason))
	}
}

// Product returns the detected/configured database product.
func (c *Context) Product() dialect.Product { return c.product }

// Dialect returns the Context's Dialect.
func (c *Context) Dialect() dialect.Dialect { return c.d }

// Mode returns the resolved connection-sharing mode.
func (c *Context) Mode() Mode { return c.mode }

// CreateSQLContainer returns an empty sqlcontainer.Container bound to this
// Context's dialect.
func (c *Context) CreateSQLContainer() *sqlcontainer.Container {
	return sqlcontainer.New(c.d)
}

// OnMetricsUpdated registers f to be called after every connection-lifecycle
// counter change. f runs outside any lock the Context holds; it must not
// call back into this Context (SPEC_FULL.md §5 re-entrancy ban).
func (c *Context) OnMetricsUpdated(f func(Metrics)) {
	c.onMetrics = f
}

func (c *Context) emitMetrics() {
	if c.onMetrics != nil {
		c.onMetrics(c.counters.snapshot())
	}
}

// Metrics returns a current snapshot of the connection-lifecycle counters.
func (c *Context) Metrics() Metrics {
	return c.counters.snapshot()
}

// usesPersistent reports whether intent, under the Context's resolved mode,
// must be served by the pinned persistent connection rather than an
// ephemeral one.
func (c *Context) usesPersistent(intent Intent) bool {
	if c.persistent == nil {
		return false
	}
	switch c.mode {
	case ModeSingleConnection:
		return true
	case ModeSingleWriter:
		return intent == Write
	default: // ModeKeepAlive's persistent connection is a sentinel only.
		return false
	}
}

// GetConnection acquires a pool permit for intent and returns a leased
// TrackedConnection. See usesPersistent for when the pinned persistent
// connection is returned instead of an ephemeral one.
func (c *Context) GetConnection(ctx context.Context, intent Intent) (*TrackedConnection, Release, error) {
	if c.usesPersistent(intent) {
		unlock, err := c.modeLock.Lock(ctx)
		if err != nil {
			return nil, nil, err
		}

		c.persistent.Acquire()
		release := func() {
			c.persistent.Release()
			unlock()
		}

		if err := c.persistent.EnsureSettings(ctx); err != nil {
			release()
			return nil, nil, err
		}
		return c.persistent, release, nil
	}

	var release Release
	var err error
	if intent == Write {
		release, err = c.writeGov.AcquireWrite(ctx)
	} else {
		release, err = c.readGov.AcquireRead(ctx)
	}
	if err != nil {
		c.counters.recordFailure(errors.Is(ctx.Err(), context.DeadlineExceeded))
		c.emitMetrics()
		return nil, nil, err
	}

	readOnly := intent == Read && c.mode == ModeSingleWriter
	dsn, err := BuildDSN(c.cfg, c.product, readOnly)
	if err != nil {
		release()
		return nil, nil, err
	}

	conn, err := c.dialEphemeral(ctx, dsn)
	if err != nil {
		release()
		c.counters.recordFailure(false)
		c.emitMetrics()
		return nil, nil, errors.Wrap(err, "can't open connection")
	}

	c.counters.recordOpen(false)
	c.emitMetrics()

	tracked := NewTrackedConnection(conn, c.d, false, readOnly)
	if err := tracked.EnsureSettings(ctx); err != nil {
		_ = conn.Close()
		release()
		return nil, nil, err
	}

	return tracked, func() {
		_ = conn.Close()
		c.counters.recordClose()
		c.emitMetrics()
		release()
	}, nil
}

// dialEphemeral opens a connection against dsn. When dsn is the Context's
// primary (non-read-only) connection string it draws from the shared pool;
// a distinct read-only DSN variant gets its own one-off *sql.DB, since
// read-only connections are ephemeral by construction and not worth pooling
// separately here.
func (c *Context) dialEphemeral(ctx context.Context, dsn string) (*gosql.Conn, error) {
	if dsn == c.currentDSN() {
		return c.db.Conn(ctx)
	}

	ro, err := gosql.Open(driverNameFor(c.product), dsn)
	if err != nil {
		return nil, err
	}
	conn, err := ro.Conn(ctx)
	if err != nil {
		_ = ro.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Context) currentDSN() string {
	dsn, _ := BuildDSN(c.cfg, c.product, false)
	return dsn
}

// Dispose releases the pinned persistent connection, if any, and closes the
// underlying connection pool. Idempotent.
func (c *Context) Dispose() error {
	var err error
	c.disposeOnce.Do(func() {
		if c.persistent != nil {
			err = c.persistent.Close()
		}
		if closeErr := c.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

// checkSnapshotIsolation queries SQL Server's snapshot_isolation_state once
// per Context and caches the result; SPEC_FULL.md §4.7 requires Snapshot
// isolation to fail with dberr.ErrUnsupportedIsolation rather than silently
// fall back to a weaker level when the database hasn't enabled it.
func (c *Context) checkSnapshotIsolation(ctx context.Context) error {
	if c.product != dialect.SqlServer {
		return nil
	}

	c.snapshotOnce.Do(func() {
		var state int
		err := c.db.QueryRowContext(ctx,
			"SELECT snapshot_isolation_state FROM sys.databases WHERE name = DB_NAME()").Scan(&state)
		switch {
		case err != nil:
			c.snapshotErr = errors.Wrap(err, "can't determine snapshot isolation state")
		case state != 1:
			c.snapshotErr = errors.Wrap(dberr.ErrUnsupportedIsolation,
				"ALLOW_SNAPSHOT_ISOLATION is not enabled on this database")
		}
	})
	return c.snapshotErr
}

func driverNameFor(p dialect.Product) string {
	switch p {
	case dialect.MySQL, dialect.MariaDB:
		return "mysql"
	case dialect.PostgreSQL, dialect.CockroachDB:
		return "postgres"
	case dialect.SqlServer:
		return "sqlserver"
	case dialect.Oracle:
		return "godror"
	case dialect.SQLite:
		return "sqlite"
	case dialect.Firebird:
		return "firebirdsql"
	case dialect.DuckDB:
		return "duckdb"
	default:
		return "sql92"
	}
}
