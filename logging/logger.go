package logging

import (
	"time"

	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with a periodic-logging interval, so
// callers driving a periodic.Ticker (counters, connection stats) can read
// the configured cadence directly off the logger they already have instead
// of threading a separate time.Duration through every constructor.
type Logger struct {
	*zap.SugaredLogger
	interval time.Duration
}

// NewLogger returns a Logger wrapping sugar with the given periodic-logging
// interval.
func NewLogger(sugar *zap.SugaredLogger, interval time.Duration) *Logger {
	return &Logger{SugaredLogger: sugar, interval: interval}
}

// Interval returns the periodic-logging interval this Logger was configured
// with.
func (l *Logger) Interval() time.Duration {
	return l.interval
}
