package log

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// Logger provides a concurrency-safe simplified logging interface.
//
// The zero Logger discards everything, so components may hold a Logger
// field without checking whether one was configured.
type Logger struct {
	*slog.Logger
	config
}

// Make creates a new [Logger] that writes to the specified writer.
// The default configuration is [DefaultFormat], [DefaultLevel],
// [DefaultTimeLayout], [DefaultPretty], and caller info disabled.
//
// Optional configuration can be applied using functional options like
// [WithFormat], [WithLevel], [WithTimeLayout], and [WithCaller].
func Make(w io.Writer, opts ...Option) Logger {
	cfg := makeConfig(w, opts...)

	return Logger{
		config: cfg,
		Logger: slog.New(cfg.handler()),
	}
}

// Discard returns a [Logger] that drops every message.
func Discard() Logger { return Make(io.Discard, WithLevel(LevelError+1)) }

// Wrap returns a new [Logger] using the receiver's configuration as the base
// with opts applied on top.
func (l Logger) Wrap(opts ...Option) Logger {
	if l.mutex == nil {
		return Make(io.Discard, opts...)
	}

	l.mutex.RLock()
	cfg := l.clone(opts...)
	l.mutex.RUnlock()

	return Logger{
		config: cfg,
		Logger: slog.New(cfg.handler()),
	}
}

// With returns a new [Logger] that includes the given attributes in each log
// message.
func (l Logger) With(attrs ...slog.Attr) Logger {
	if l.Logger == nil {
		return l
	}

	l.mutex.RLock()
	cfg := l.clone()
	l.mutex.RUnlock()

	return Logger{
		config: cfg,
		Logger: slog.New(l.Handler().WithAttrs(attrs)),
	}
}

// Level returns the current minimum log level.
func (l Logger) Level() Level {
	if l.mutex == nil {
		return DefaultLevel
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.level
}

// Format returns the current log output format.
func (l Logger) Format() Format {
	if l.mutex == nil {
		return DefaultFormat
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.format
}

// TraceContext logs a message at Trace level with the provided context.
func (l Logger) TraceContext(
	ctx context.Context,
	msg string,
	attrs ...slog.Attr,
) {
	l.logContext(ctx, LevelTrace, msg, attrs...)
}

// Trace logs a message at Trace level.
func (l Logger) Trace(msg string, attrs ...slog.Attr) {
	l.logContext(DefaultContextProvider(), LevelTrace, msg, attrs...)
}

// DebugContext logs a message at Debug level with the provided context.
func (l Logger) DebugContext(
	ctx context.Context,
	msg string,
	attrs ...slog.Attr,
) {
	l.logContext(ctx, LevelDebug, msg, attrs...)
}

// Debug logs a message at Debug level.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.logContext(DefaultContextProvider(), LevelDebug, msg, attrs...)
}

// InfoContext logs a message at Info level with the provided context.
func (l Logger) InfoContext(
	ctx context.Context,
	msg string,
	attrs ...slog.Attr,
) {
	l.logContext(ctx, LevelInfo, msg, attrs...)
}

// Info logs a message at Info level.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.logContext(DefaultContextProvider(), LevelInfo, msg, attrs...)
}

// WarnContext logs a message at Warn level with the provided context.
func (l Logger) WarnContext(
	ctx context.Context,
	msg string,
	attrs ...slog.Attr,
) {
	l.logContext(ctx, LevelWarn, msg, attrs...)
}

// Warn logs a message at Warn level.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.logContext(DefaultContextProvider(), LevelWarn, msg, attrs...)
}

// ErrorContext logs a message at Error level with the provided context.
func (l Logger) ErrorContext(
	ctx context.Context,
	msg string,
	attrs ...slog.Attr,
) {
	l.logContext(ctx, LevelError, msg, attrs...)
}

// Error logs a message at Error level.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.logContext(DefaultContextProvider(), LevelError, msg, attrs...)
}

// Enabled reports whether messages at level would be written.
func (l Logger) Enabled(ctx context.Context, level Level) bool {
	if l.Logger == nil {
		return false
	}

	return l.Logger.Enabled(ctx, slog.Level(level))
}

// logContext writes a record at level, attributing it to the caller of the
// exported logging method.
func (l Logger) logContext(
	ctx context.Context,
	level Level,
	msg string,
	attrs ...slog.Attr,
) {
	if !l.Enabled(ctx, level) {
		return
	}

	// 1=runtime.Callers, 2=logContext, 3=exported method, 4=its caller.
	// Package-level helpers add a frame; see logDefault.
	l.write(ctx, level, msg, 4, attrs)
}

func (l Logger) write(
	ctx context.Context,
	level Level,
	msg string,
	skip int,
	attrs []slog.Attr,
) {
	var pcs [1]uintptr

	runtime.Callers(skip, pcs[:])

	r := slog.NewRecord(time.Now(), slog.Level(level), msg, pcs[0])
	r.AddAttrs(attrs...)

	_ = l.Handler().Handle(ctx, r)
}
