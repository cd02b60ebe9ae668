package database

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nimbusdata/rdbx/dberr"
)

// DefaultModeLockTimeout bounds how long ModeLock.Lock waits for the
// persistent connection's mutual-exclusion lock before raising
// dberr.ErrModeContention.
const DefaultModeLockTimeout = 30 * time.Second

// ModeLock is the async-aware mutual-exclusion primitive guarding a
// Context's shared persistent connection (KeepAlive/SingleWriter/
// SingleConnection), as described in SPEC_FULL.md §4.5. Unlike sync.Mutex
// it composes with select and carries a configurable timeout plus
// diagnostic counters.
type ModeLock struct {
	ch      chan struct{}
	timeout time.Duration

	waiters            atomic.Int64
	cumulativeTimeouts atomic.Int64
}

// NewModeLock returns an unlocked ModeLock with the given acquisition
// timeout; a non-positive timeout falls back to DefaultModeLockTimeout.
func NewModeLock(timeout time.Duration) *ModeLock {
	if timeout <= 0 {
		timeout = DefaultModeLockTimeout
	}
	l := &ModeLock{ch: make(chan struct{}, 1), timeout: timeout}
	l.ch <- struct{}{}
	return l
}

// Lock blocks until the lock is acquired, ctx is cancelled, or the lock
// timeout elapses. On success it returns a function that releases the
// lock; callers must call it exactly once.
func (l *ModeLock) Lock(ctx context.Context) (func(), error) {
	l.waiters.Add(1)
	defer l.waiters.Add(-1)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case <-l.ch:
		return func() { l.ch <- struct{}{} }, nil
	case <-timer.C:
		l.cumulativeTimeouts.Add(1)
		return nil, dberr.ModeContention(dberr.ModeContentionSnapshot{
			Waiters:           int(l.waiters.Load()),
			CumulativeTimeout: time.Duration(l.cumulativeTimeouts.Load()) * l.timeout,
			LockTimeout:       l.timeout,
		})
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
