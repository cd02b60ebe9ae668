package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/nimbusdata/rdbx/dialect"
)

// TrackedConnection wraps one *sql.Conn with the single-callback session
// settings application and the connection-lock lease semantics described in
// SPEC_FULL.md §4.4. For ephemeral connections (the common case in Standard
// and read-side SingleWriter traffic) the connection lock is a no-op;
// shared persistent connections (the KeepAlive sentinel, a SingleConnection
// pin, or a connection pinned inside a Tx) set shared=true and get a real
// mutual-exclusion lock, acquired for the full lifetime of a command or
// reader lease.
type TrackedConnection struct {
	conn   *sql.Conn
	d      dialect.Dialect
	shared bool

	mu sync.Mutex

	settingsOnce sync.Once
	settingsErr  error
	readOnly     bool
}

// NewTrackedConnection wraps conn. shared marks whether the connection is a
// pinned, potentially concurrently-referenced connection requiring a real
// lock on Acquire, as opposed to an ephemeral one handed out once and
// returned to the pool.
func NewTrackedConnection(conn *sql.Conn, d dialect.Dialect, shared, readOnly bool) *TrackedConnection {
	return &TrackedConnection{conn: conn, d: d, shared: shared, readOnly: readOnly}
}

// Conn returns the underlying *sql.Conn.
func (c *TrackedConnection) Conn() *sql.Conn { return c.conn }

// Acquire takes the connection lock for the duration of one command or
// reader lease. For ephemeral connections this is a no-op since no other
// goroutine can observe the same *sql.Conn concurrently.
func (c *TrackedConnection) Acquire() {
	if c.shared {
		c.mu.Lock()
	}
}

// Release gives up the connection lock taken by Acquire.
func (c *TrackedConnection) Release() {
	if c.shared {
		c.mu.Unlock()
	}
}

// EnsureSettings runs the dialect's session-settings script exactly once
// for this physical connection's lifetime. It does not run dialect
// detection; nothing in Context calls DetectProduct, so the dialect keeps
// its undetected ProductInfo (version-gated capabilities see version 0).
func (c *TrackedConnection) EnsureSettings(ctx context.Context) error {
	c.settingsOnce.Do(func() {
		for _, stmt := range c.d.SessionSettings(c.readOnly) {
			if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
				c.settingsErr = err
				return
			}
		}
	})
	return c.settingsErr
}

// Close closes the underlying connection. For a shared connection, callers
// must hold Acquire before calling Close.
func (c *TrackedConnection) Close() error {
	return c.conn.Close()
}
