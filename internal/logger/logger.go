// Package logger is the structured logger shared by the server, services and
// generator clients. Calls take a message plus alternating key/value pairs.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoder preset and the minimum level.
type Options struct {
	// Mode "prod"/"production" gives JSON output; anything else is the
	// human-readable development console.
	Mode string
	// Level overrides the preset's minimum level ("debug", "info", "warn", "error").
	// Empty keeps debug for development and info for production.
	Level string
}

type Logger struct {
	s     *zap.SugaredLogger
	level zap.AtomicLevel
}

func New(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		parsed, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level.SetLevel(parsed)
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar(), level: cfg.Level}, nil
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// newFromCore is used by tests to observe entries.
func newFromCore(core zapcore.Core, level zap.AtomicLevel) *Logger {
	return &Logger{s: zap.New(core).Sugar(), level: level}
}

func (l *Logger) Sync() {
	_ = l.s.Sync()
}

// Level reports the current minimum level.
func (l *Logger) Level() string {
	return l.level.Level().String()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l *Logger) Info(msg string, keysAndValues ...interface{})  { l.s.Infow(msg, keysAndValues...) }
func (l *Logger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
func (l *Logger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) { l.s.Fatalw(msg, keysAndValues...) }

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{s: l.s.With(keysAndValues...), level: l.level}
}

// Component names a subsystem, e.g. "openai" or "gate". Nested names join with dots.
func (l *Logger) Component(name string) *Logger {
	return &Logger{s: l.s.Named(name), level: l.level}
}

// ForGeneration tags every entry of one generation run. The caller is only
// recorded when an admin generates on someone else's behalf.
func (l *Logger) ForGeneration(userID, protocolType, callerID string) *Logger {
	kv := []interface{}{"userId", userID, "type", protocolType}
	if callerID != "" && callerID != userID {
		kv = append(kv, "callerId", callerID)
	}
	return l.With(kv...)
}
