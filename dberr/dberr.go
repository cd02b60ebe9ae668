// Package dberr defines the tagged error taxonomy returned by the rest of
// this module: Configuration, Dialect, Concurrency, Transaction,
// DataIntegrity and Driver errors, each wrapping the underlying cause with
// github.com/pkg/errors so stack traces survive.
package dberr

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Sentinel kinds. Use errors.Is against these, not string matching.
var (
	// ErrConfiguration is returned for bad connection strings, entities
	// missing required key attributes, conflicting attributes, or a mode
	// coercion that correctness requires but the caller forbade.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedFeature is returned when the detected product/version
	// does not support a requested capability (e.g. MERGE on an old server).
	ErrUnsupportedFeature = errors.New("unsupported feature for this dialect/version")

	// ErrTooManyParameters is returned when a rendered statement would
	// exceed the dialect's max-parameter limit.
	ErrTooManyParameters = errors.New("too many parameters for this dialect")

	// ErrModeContention is returned when acquiring the mode lock timed out.
	ErrModeContention = errors.New("mode lock contention")

	// ErrPoolSaturated is returned when acquiring a pool permit timed out.
	ErrPoolSaturated = errors.New("connection pool saturated")

	// ErrOperationCancelled wraps a caller-observed context cancellation.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrTransactionState is returned for double-commit, commit-after-rollback,
	// or any other transaction state misuse.
	ErrTransactionState = errors.New("invalid transaction state")

	// ErrUnsupportedIsolation is returned when the requested isolation level
	// is not available on the detected product/configuration.
	ErrUnsupportedIsolation = errors.New("unsupported isolation level")

	// ErrUniqueViolation reports a unique/primary-key constraint violation.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation reports a foreign-key constraint violation.
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrVersionConflict reports an optimistic-concurrency token mismatch.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNoPrimaryKey is returned when an operation needs a primary key or
	// surrogate id and the entity's type map descriptor has none.
	ErrNoPrimaryKey = errors.New("entity has no primary key or surrogate id")
)

// TooManyParameters reports that a statement needing `needed` parameters
// was about to be rendered against a dialect whose limit is `limit`.
func TooManyParameters(needed, limit int) error {
	return fmt.Errorf("%w: needs %d, limit is %d", ErrTooManyParameters, needed, limit)
}

// ModeContentionSnapshot carries diagnostics for a ModeContention error.
type ModeContentionSnapshot struct {
	Waiters           int
	CumulativeTimeout time.Duration
	LockTimeout       time.Duration
}

// ModeContention builds an ErrModeContention carrying a diagnostic snapshot.
func ModeContention(s ModeContentionSnapshot) error {
	return fmt.Errorf("%w: %d waiters, timeout %s (cumulative wait %s)",
		ErrModeContention, s.Waiters, s.LockTimeout, s.CumulativeTimeout)
}

// PoolSaturatedSnapshot carries diagnostics for a PoolSaturated error.
type PoolSaturatedSnapshot struct {
	QueueDepth     int
	InUse          int
	AcquireTimeout time.Duration
}

// PoolSaturated builds an ErrPoolSaturated carrying a diagnostic snapshot.
func PoolSaturated(s PoolSaturatedSnapshot) error {
	return fmt.Errorf("%w: queue depth %d, %d in use, timeout %s",
		ErrPoolSaturated, s.QueueDepth, s.InUse, s.AcquireTimeout)
}

// DriverError wraps a low-level driver/connection failure with operational
// context: the product, the operation being attempted, and a connection
// string fingerprint with secrets already redacted by the caller.
type DriverError struct {
	Product     string
	Operation   string
	Fingerprint string
	Cause       error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %s", e.Product, e.Operation, e.Fingerprint, e.Cause)
}

func (e *DriverError) Unwrap() error { return e.Cause }

// WrapDriver wraps cause into a *DriverError with the supplied context.
func WrapDriver(product, operation, fingerprint string, cause error) error {
	if cause == nil {
		return nil
	}
	return &DriverError{Product: product, Operation: operation, Fingerprint: fingerprint, Cause: cause}
}

// RowError pairs a bulk-operation row index/entity with the error it raised.
type RowError struct {
	Index  int
	Entity any
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
