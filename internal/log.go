package internal

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// levelTrace sits below slog.LevelDebug
const levelTrace = slog.LevelDebug - 4

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE to a LogLevel; anything else is INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelTrace:
		return levelTrace
	default:
		return slog.LevelInfo
	}
}

// Logger provides leveled, structured logging. Arguments after the message are
// slog key/value pairs.
type Logger struct {
	level  LogLevel
	logger *slog.Logger
}

// NewLoggerWithWriter creates a logger writing tint-formatted records to w
func NewLoggerWithWriter(w io.Writer, level LogLevel, color bool) *Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level.slogLevel(),
		TimeFormat: "15:04:05",
		NoColor:    !color,
	})
	return &Logger{level: level, logger: slog.New(handler)}
}

// NewNopLogger discards everything; used by tests and library defaults
func NewNopLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, LogLevelError, false)
}

// Error logs error messages
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Info logs info messages
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Debug logs debug messages
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Trace logs trace messages
func (l *Logger) Trace(msg string, args ...any) {
	l.logger.Log(context.Background(), levelTrace, msg, args...)
}

// With returns a logger that adds args to every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{level: l.level, logger: l.logger.With(args...)}
}

// Slog exposes the underlying slog.Logger
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}
