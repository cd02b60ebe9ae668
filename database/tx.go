package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nimbusdata/rdbx/dberr"
	"github.com/nimbusdata/rdbx/dialect"
	"github.com/pkg/errors"
)

// IsolationLevel is the portable isolation profile Tx callers request;
// toSQL maps it onto the database/sql driver-level sql.IsolationLevel the
// underlying driver actually understands.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
	// IsolationSnapshot requests SQL Server's row-versioning based snapshot
	// isolation. BeginTransaction rejects it up front via
	// Context.checkSnapshotIsolation unless the target database has
	// ALLOW_SNAPSHOT_ISOLATION enabled.
	IsolationSnapshot
)

func (l IsolationLevel) String() string {
	switch l {
	case IsolationReadUncommitted:
		return "read uncommitted"
	case IsolationReadCommitted:
		return "read committed"
	case IsolationRepeatableRead:
		return "repeatable read"
	case IsolationSerializable:
		return "serializable"
	case IsolationSnapshot:
		return "snapshot"
	default:
		return "default"
	}
}

func (l IsolationLevel) toSQL() sql.IsolationLevel {
	switch l {
	case IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationReadCommitted:
		return sql.LevelReadCommitted
	case IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationSerializable:
		return sql.LevelSerializable
	case IsolationSnapshot:
		return sql.LevelSnapshot
	default:
		return sql.LevelDefault
	}
}

// Tx pins one connection for the duration of a transaction, holding the
// pool governor permit it was acquired with until Commit, Rollback or
// Dispose. All statements, including nested savepoints, run serialized
// under opMu: the driver-level *sql.Tx is not itself safe for concurrent
// use from multiple goroutines. See SPEC_FULL.md §4.7.
type Tx struct {
	owner   *Context
	conn    *TrackedConnection
	release Release
	sqlTx   *sql.Tx
	d       dialect.Dialect

	opMu sync.Mutex

	stateMu   sync.Mutex
	done      bool
	committed bool

	savepoints []string
	spCounter  atomic.Int64
}

// BeginTransaction starts a transaction at the requested isolation level,
// acquiring a write permit and (depending on Mode) the persistent
// connection or an ephemeral one, exactly as GetConnection(ctx, Write)
// would. readOnly additionally asks the driver to mark the transaction
// read-only, which on PostgreSQL/CockroachDB issues
// `SET TRANSACTION READ ONLY` (equivalent to default_transaction_read_only
// for the transaction's lifetime).
func (c *Context) BeginTransaction(ctx context.Context, iso IsolationLevel, readOnly bool) (*Tx, error) {
	if iso == IsolationSnapshot {
		if err := c.checkSnapshotIsolation(ctx); err != nil {
			return nil, err
		}
	}

	conn, release, err := c.GetConnection(ctx, Write)
	if err != nil {
		return nil, err
	}

	sqlTx, err := conn.Conn().BeginTx(ctx, &sql.TxOptions{Isolation: iso.toSQL(), ReadOnly: readOnly})
	if err != nil {
		release()
		return nil, errors.Wrap(err, "can't begin transaction")
	}

	return &Tx{
		owner:   c,
		conn:    conn,
		release: release,
		sqlTx:   sqlTx,
		d:       c.d,
	}, nil
}

// ExecContext runs query against the transaction's pinned connection.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	return t.sqlTx.ExecContext(ctx, query, args...)
}

// QueryContext runs query against the transaction's pinned connection.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	return t.sqlTx.QueryContext(ctx, query, args...)
}

// Savepoint creates a new savepoint, naming it automatically if name is
// empty, and returns the name actually used.
func (t *Tx) Savepoint(ctx context.Context, name string) (string, error) {
	if !t.d.Capabilities().Savepoints {
		return "", fmt.Errorf("%w: %s does not support savepoints", dberr.ErrUnsupportedFeature, t.d.Product())
	}

	t.opMu.Lock()
	defer t.opMu.Unlock()

	if name == "" {
		name = fmt.Sprintf("sp%d", t.spCounter.Add(1))
	}
	if _, err := t.sqlTx.ExecContext(ctx, t.d.SavepointSQL(name)); err != nil {
		return "", errors.Wrap(err, "can't create savepoint")
	}
	t.savepoints = append(t.savepoints, name)
	return name, nil
}

// RollbackToSavepoint rolls back to the named savepoint, discarding every
// savepoint created after it.
func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	if _, err := t.sqlTx.ExecContext(ctx, t.d.RollbackToSavepointSQL(name)); err != nil {
		return errors.Wrap(err, "can't roll back to savepoint")
	}
	t.discardSavepointsAfter(name)
	return nil
}

// ReleaseSavepoint releases the named savepoint. On dialects with no
// explicit release statement (SQL Server) this only forgets the bookkeeping
// entry.
func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	stmt := t.d.ReleaseSavepointSQL(name)

	t.opMu.Lock()
	defer t.opMu.Unlock()

	if stmt != "" {
		if _, err := t.sqlTx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "can't release savepoint")
		}
	}
	t.removeSavepoint(name)
	return nil
}

// discardSavepointsAfter drops name and every savepoint created after it;
// must be called with opMu held.
func (t *Tx) discardSavepointsAfter(name string) {
	for i, sp := range t.savepoints {
		if sp == name {
			t.savepoints = t.savepoints[:i]
			return
		}
	}
}

// removeSavepoint drops exactly name from the bookkeeping list; must be
// called with opMu held.
func (t *Tx) removeSavepoint(name string) {
	for i, sp := range t.savepoints {
		if sp == name {
			t.savepoints = append(t.savepoints[:i], t.savepoints[i+1:]...)
			return
		}
	}
}

// Commit commits the transaction and releases the connection/permit it
// holds. Committing twice, or committing after Rollback, returns
// dberr.ErrTransactionState.
func (t *Tx) Commit() error {
	if !t.markDone(true) {
		return dberr.ErrTransactionState
	}

	err := t.sqlTx.Commit()
	t.conn.Release()
	t.release()
	if err != nil {
		return errors.Wrap(err, "can't commit transaction")
	}
	return nil
}

// Rollback rolls back the transaction and releases the connection/permit it
// holds. Rolling back twice, or rolling back after Commit, returns
// dberr.ErrTransactionState.
func (t *Tx) Rollback() error {
	if !t.markDone(false) {
		return dberr.ErrTransactionState
	}

	err := t.sqlTx.Rollback()
	t.conn.Release()
	t.release()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "can't roll back transaction")
	}
	return nil
}

// Dispose rolls back the transaction if it was never committed or rolled
// back. Safe to call unconditionally, e.g. `defer tx.Dispose()` right after
// BeginTransaction succeeds.
func (t *Tx) Dispose() {
	t.stateMu.Lock()
	done := t.done
	t.stateMu.Unlock()
	if !done {
		_ = t.Rollback()
	}
}

// markDone atomically transitions the transaction to done, recording
// committed for bookkeeping, and reports whether this call performed the
// transition (false means the transaction was already done).
func (t *Tx) markDone(committed bool) bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.committed = committed
	return true
}
