package logging

import (
	"context"
	"encoding/hex"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brightloop-io/modbus-toolkit/common"
)

// Logger implements common.LoggerInterface and common.LoggerInterfaceHexdump
// on top of zap's SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// Option is a function that configures a Logger.
type Option func(*loggerConfig)

type loggerConfig struct {
	level  common.LogLevel
	core   zapcore.Core
}

// WithLevel sets the initial log level.
func WithLevel(level common.LogLevel) Option {
	return func(c *loggerConfig) { c.level = level }
}

// WithCore overrides the zapcore.Core backing the logger, e.g. for tests
// that want to assert against an in-memory observer core.
func WithCore(core zapcore.Core) Option {
	return func(c *loggerConfig) { c.core = core }
}

// NewLogger creates a new logger with the given options. By default it
// writes JSON-encoded entries to stdout at info level.
func NewLogger(options ...Option) *Logger {
	cfg := &loggerConfig{level: common.LevelInfo}
	for _, option := range options {
		option(cfg)
	}

	atomicLevel := zap.NewAtomicLevelAt(toZapLevel(cfg.level))

	core := cfg.core
	if core == nil {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stdout)), zapcore.DebugLevel)
	}
	core = &levelGatedCore{Core: core, level: atomicLevel}

	zapLogger := zap.New(core)
	return &Logger{sugar: zapLogger.Sugar(), level: atomicLevel}
}

// levelGatedCore wraps a zapcore.Core so that SetLevel/GetLevel on the
// owning Logger always control what reaches it, whether the core came
// from the default stdout encoder or was supplied via WithCore for tests.
type levelGatedCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelGatedCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelGatedCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *levelGatedCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelGatedCore{Core: c.Core.With(fields), level: c.level}
}

func toZapLevel(level common.LogLevel) zapcore.Level {
	switch level {
	case common.LevelTrace, common.LevelDebug:
		return zapcore.DebugLevel
	case common.LevelInfo:
		return zapcore.InfoLevel
	case common.LevelWarn:
		return zapcore.WarnLevel
	case common.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel + 1 // above Fatal: silences everything, matches LevelNone
	}
}

func fromZapLevel(level zapcore.Level) common.LogLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return common.LevelDebug
	case level == zapcore.InfoLevel:
		return common.LevelInfo
	case level == zapcore.WarnLevel:
		return common.LevelWarn
	case level == zapcore.ErrorLevel:
		return common.LevelError
	default:
		return common.LevelNone
	}
}

// Trace logs at trace level. zap has no trace level of its own, so trace
// messages are emitted at debug level with a distinguishing field.
func (l *Logger) Trace(ctx context.Context, format string, args ...interface{}) {
	l.sugar.With("level_name", "trace").Debugf(format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// WithFields returns a new logger with the given structured fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) common.LoggerInterface {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{sugar: l.sugar.With(args...), level: l.level}
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() common.LogLevel {
	return fromZapLevel(l.level.Level())
}

// SetLevel sets the log level. Since the level is an atomic shared across
// every logger derived via WithFields, this affects all of them at once.
func (l *Logger) SetLevel(level common.LogLevel) {
	l.level.SetLevel(toZapLevel(level))
}

// Hexdump logs a hexdump of the given data at trace level.
func (l *Logger) Hexdump(ctx context.Context, data []byte) {
	if !l.level.Enabled(zapcore.DebugLevel) {
		return
	}
	l.sugar.With("level_name", "trace").Debugf("hexdump:\n%s", hex.Dump(data))
}
