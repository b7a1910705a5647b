// Package logger provides structured logging for the LearnLoop gamification engine.
// It keeps a small typed-field API on top of go.uber.org/zap and supports
// context propagation.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field is a structured key-value pair.
type Field = zap.Field

func String(key, value string) Field      { return zap.String(key, value) }
func Int(key string, value int) Field     { return zap.Int(key, value) }
func Int64(key string, value int64) Field { return zap.Int64(key, value) }
func Bool(key string, value bool) Field   { return zap.Bool(key, value) }

// Err creates an error field. A nil error produces no field.
func Err(err error) Field { return zap.Error(err) }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field { return zap.Duration(key, value) }

// Logger is the main logger struct.
type Logger struct {
	z *zap.Logger
}

// Options configures the logger.
type Options struct {
	Level  Level
	Format string // "json" or "console"
	Output io.Writer

	AddCaller bool
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Level:     LevelInfo,
		Format:    "json",
		Output:    os.Stdout,
		AddCaller: true,
	}
}

// New creates a new Logger with the given options.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var enc zapcore.Encoder
	if opts.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(opts.Output), zap.NewAtomicLevelAt(opts.Level.zapLevel()))

	var zopts []zap.Option
	if opts.AddCaller {
		zopts = append(zopts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return &Logger{z: zap.New(core, zopts...)}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// With returns a new Logger with the given fields added.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return NewNop()
}

// Gamification logging helpers.
func UserID(id string) Field        { return String("user_id", id) }
func AttemptID(id string) Field     { return String("attempt_id", id) }
func ClassID(id string) Field       { return String("class_id", id) }
func AchievementID(id string) Field { return String("achievement_id", id) }
func XPAmount(xp int64) Field       { return Int64("xp_amount", xp) }
func Reason(reason string) Field    { return String("reason", reason) }
func Component(name string) Field   { return String("component", name) }
func Operation(name string) Field   { return String("operation", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
