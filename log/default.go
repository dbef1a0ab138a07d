package log

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// DefaultContextProvider returns the default context used by context-unaware
// logging functions.
var DefaultContextProvider = context.TODO

var (
	defaultMu  sync.RWMutex
	defaultLog = Make(os.Stderr)
)

// Default returns the package-level logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	return defaultLog
}

// Config updates the package-level logger with the given options.
func Config(opts ...Option) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultLog = defaultLog.Wrap(opts...)
}

// logDefault writes through the package-level logger, skipping one more frame
// than [Logger.logContext] so the caller of the package function is recorded.
func logDefault(ctx context.Context, level Level, msg string, attrs []slog.Attr) {
	l := Default()
	if !l.Enabled(ctx, level) {
		return
	}

	l.write(ctx, level, msg, 4, attrs)
}

// TraceContext logs a message at Trace level using the default logger.
func TraceContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelTrace, msg, attrs)
}

// DebugContext logs a message at Debug level using the default logger with the
// provided context.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelDebug, msg, attrs)
}

// Debug logs a message at Debug level using the default logger.
func Debug(msg string, attrs ...slog.Attr) {
	logDefault(DefaultContextProvider(), LevelDebug, msg, attrs)
}

// InfoContext logs a message at Info level using the default logger with the
// provided context.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelInfo, msg, attrs)
}

// Info logs a message at Info level using the default logger.
func Info(msg string, attrs ...slog.Attr) {
	logDefault(DefaultContextProvider(), LevelInfo, msg, attrs)
}

// WarnContext logs a message at Warn level using the default logger with the
// provided context.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelWarn, msg, attrs)
}

// Warn logs a message at Warn level using the default logger.
func Warn(msg string, attrs ...slog.Attr) {
	logDefault(DefaultContextProvider(), LevelWarn, msg, attrs)
}

// ErrorContext logs a message at Error level using the default logger with the
// provided context.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelError, msg, attrs)
}

// Error logs a message at Error level using the default logger.
func Error(msg string, attrs ...slog.Attr) {
	logDefault(DefaultContextProvider(), LevelError, msg, attrs)
}

// With returns a new [Logger] derived from the default logger that includes
// the given attributes in each log message.
func With(attrs ...slog.Attr) Logger {
	return Default().With(attrs...)
}
