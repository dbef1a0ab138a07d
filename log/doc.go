// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// # Basic Usage
//
//	logger := log.Make(os.Stderr)
//	logger.Info("compiled", slog.String("file", "site.yaml"))
//
// # Configuration
//
// Loggers are configured with functional options applied at creation time,
// or layered onto an existing logger with [Logger.Wrap]:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelTrace),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("kitchen"),
//		log.WithCaller(true))
//
// # Levels
//
// In addition to the four [log/slog] levels, [LevelTrace] sits below
// [LevelDebug] and is used by the compiler to trace individual pipeline
// stages.
//
// # Pretty Output
//
// With [WithPretty] enabled (the default), text and JSON records are styled
// with lipgloss. Styling is dropped automatically when the output is not a
// terminal.
//
// # Package Logger
//
// The package-level functions ([Info], [DebugContext], and so on) write
// through a default logger that [Config] reconfigures.
package log
