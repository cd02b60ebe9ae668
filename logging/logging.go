package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output names accepted by Config.Output and AssertOutput.
const (
	CONSOLE = "console"
	JOURNAL = "systemd-journald"
)

// Logging is a named root logger plus a registry of per-component child
// loggers, each potentially overriding the root's level via Config.Options
// (e.g. "database: debug" turns on verbose logging for just the database
// component while everything else stays at the configured default).
type Logging struct {
	config Config
	core   zapcore.Core
	root   *Logger

	mu       sync.Mutex
	children map[string]*Logger
}

// NewLoggingFromConfig builds the root zapcore.Core for output/level per c
// and returns a Logging factory identifying itself as name (e.g. in
// systemd-journald's SYSLOG_IDENTIFIER field).
func NewLoggingFromConfig(name string, c Config) (*Logging, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var core zapcore.Core
	if c.Output == JOURNAL {
		core = NewJournaldCore(name, c.Level)
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.Lock(zapcore.AddSync(os.Stderr)),
			c.Level,
		)
	}

	l := &Logging{
		config:   c,
		core:     core,
		children: make(map[string]*Logger),
	}
	l.root = NewLogger(zap.New(core).Sugar().Named(name), c.Interval)

	return l, nil
}

// GetLogger returns the root logger.
func (l *Logging) GetLogger() *Logger {
	return l.root
}

// GetChildLogger returns the named child logger, creating it on first use.
// If Config.Options names this component (or a "."-separated prefix of
// it), the child's level is overridden accordingly; otherwise it inherits
// the root core's level.
func (l *Logging) GetChildLogger(name string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if child, ok := l.children[name]; ok {
		return child
	}

	core := l.core
	if level, ok := l.levelFor(name); ok {
		core = levelOverrideCore{Core: l.core, level: level}
	}

	child := NewLogger(zap.New(core).Sugar().Named(name), l.config.Interval)
	l.children[name] = child
	return child
}

// levelFor resolves name (or its longest registered "."-separated prefix)
// against Config.Options.
func (l *Logging) levelFor(name string) (zapcore.Level, bool) {
	if lvl, ok := l.config.Options[name]; ok {
		return lvl, true
	}

	parts := strings.Split(name, ".")
	for i := len(parts) - 1; i > 0; i-- {
		prefix := strings.Join(parts[:i], ".")
		if lvl, ok := l.config.Options[prefix]; ok {
			return lvl, true
		}
	}

	return 0, false
}

// levelOverrideCore wraps a zapcore.Core, substituting a fixed minimum
// level for the level check while delegating encoding/writing to the
// wrapped core.
type levelOverrideCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c levelOverrideCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.level
}

func (c levelOverrideCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
