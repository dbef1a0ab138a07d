package log

import (
	"io"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level slog.Level

const levelTraceMask = -8

const (
	LevelTrace Level = Level(levelTraceMask)  // trace
	LevelDebug Level = Level(slog.LevelDebug) // debug
	LevelInfo  Level = Level(slog.LevelInfo)  // info
	LevelWarn  Level = Level(slog.LevelWarn)  // warn
	LevelError Level = Level(slog.LevelError) // error
)

// DefaultLevel is the default log level.
const DefaultLevel = LevelInfo

var levelNames = map[Level]string{
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// String returns the lower-case name of a defined level, or the [slog.Level]
// rendering (for example "INFO+2") otherwise.
func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}

	return slog.Level(l).String()
}

// Levels returns an iterator over all defined log levels.
func Levels() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, level := range []Level{
			LevelTrace,
			LevelDebug,
			LevelInfo,
			LevelWarn,
			LevelError,
		} {
			if !yield(level.String()) {
				return
			}
		}
	}
}

// ParseLevel parses a string representation of a log level.
// Valid level strings are "TRACE", "DEBUG", "INFO", "WARN", and "ERROR",
// optionally followed by a "+" or "-" and an integer offset.
// See [slog.Level.UnmarshalText] for details.
func ParseLevel(s string) Level {
	// slog.Level.UnmarshalText does not know about trace.
	if strings.EqualFold(s, "trace") {
		return LevelTrace
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return DefaultLevel
	}

	return Level(l)
}

// Format represents the output format for log messages.
type Format int

const (
	FormatText Format = iota // text
	FormatJSON               // json
)

// DefaultFormat is the default log message format.
const DefaultFormat = FormatText

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// Formats returns an iterator over all defined log formats.
func Formats() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, format := range []Format{FormatText, FormatJSON} {
			if !yield(format.String()) {
				return
			}
		}
	}
}

// ParseFormat parses a string representation of a log format.
// Valid format strings are "json" and "text".
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return DefaultFormat
	}
}

// FormatTime defines a function that formats a time.Time value as a string.
type FormatTime func(time.Time) string

// DefaultTimeLayout is the default used when no valid time layout is provided.
const DefaultTimeLayout = time.RFC3339

// DefaultCaller is the default setting for including caller information
// in log output.
const DefaultCaller = false

// DefaultPretty is the default setting for pretty printing log output.
const DefaultPretty = true

// config holds the configuration options for a Logger.
type config struct {
	mutex      *sync.RWMutex
	output     io.Writer
	formatTime FormatTime
	level      Level
	format     Format
	caller     bool
	pretty     bool
}

// Option modifies a config. A nil Option is ignored.
type Option func(config) config

func (c config) with(opts ...Option) config {
	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// makeConfig creates a new config with defaults applied, overridden by any
// provided options.
func makeConfig(w io.Writer, opts ...Option) config {
	var c config

	c.mutex = &sync.RWMutex{}

	return c.with(WithDefaults(w)).with(opts...)
}

// clone creates a copy of the config with a separate mutex and applies any
// provided options.
func (c config) clone(opts ...Option) config {
	c.mutex = &sync.RWMutex{}

	return c.with(opts...)
}

// update runs fn on c while holding its write lock.
func (c config) update(fn func(*config)) config {
	if c.mutex == nil {
		c.mutex = &sync.RWMutex{}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	fn(&c)

	return c
}

// handlerOptions builds the [slog.HandlerOptions] shared by all handlers.
func (c config) handlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource: c.caller,
		Level:     slog.Level(c.level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					formatted := c.formatTime(t)
					if formatted == "" {
						return slog.Attr{}
					}

					a.Value = slog.StringValue(formatted)
				}

			case slog.LevelKey:
				// Print TRACE rather than DEBUG-4.
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(strings.ToUpper(Level(level).String()))
				}
			}

			return a
		},
	}
}

// handler creates a slog.Handler based on the current configuration.
func (c config) handler() slog.Handler {
	opts := c.handlerOptions()

	switch {
	case c.pretty && c.format == FormatJSON:
		return newPrettyJSONHandler(c.output, opts)
	case c.pretty && c.format == FormatText:
		return newPrettyTextHandler(c.output, opts)
	case c.format == FormatJSON:
		return slog.NewJSONHandler(c.output, opts)
	case c.format == FormatText:
		return slog.NewTextHandler(c.output, opts)
	default:
		return slog.DiscardHandler
	}
}

// WithDefaults returns a functional option that sets the default configuration.
// The default configuration is [DefaultTimeLayout], [DefaultLevel],
// [DefaultFormat], [DefaultPretty], and caller info disabled.
func WithDefaults(w io.Writer) Option {
	if w == nil {
		w = io.Discard
	}

	return func(c config) config {
		return c.update(func(c *config) {
			c.output = w
			c.formatTime = makeFormatTimeFunc(DefaultTimeLayout)
			c.level = DefaultLevel
			c.format = DefaultFormat
			c.caller = DefaultCaller
			c.pretty = DefaultPretty
		})
	}
}

// WithOutput returns a functional option that sets the output [io.Writer]
// for log messages.
// If a nil writer is provided, [io.Discard] is used instead.
func WithOutput(w io.Writer) Option {
	if w == nil {
		w = io.Discard
	}

	return func(c config) config {
		return c.update(func(c *config) { c.output = w })
	}
}

// WithLevel returns a functional option that sets the minimum log level.
// Messages below this level are discarded.
func WithLevel(level Level) Option {
	return func(c config) config {
		return c.update(func(c *config) { c.level = level })
	}
}

// WithFormat returns a functional option that sets the output format
// for log messages.
func WithFormat(format Format) Option {
	return func(c config) config {
		return c.update(func(c *config) { c.format = format })
	}
}

// WithTimeLayout returns a functional option that sets the layout used to
// format log timestamps.
//
// The layout string can be one of the named layouts from the [time] package
// (for example, "RFC3339" or "Kitchen"). Otherwise, it is passed verbatim to
// [time.Time.Format]. An empty layout, or "none", disables timestamps.
func WithTimeLayout(layout string) Option {
	format := makeFormatTimeFunc(layout)

	return func(c config) config {
		return c.update(func(c *config) { c.formatTime = format })
	}
}

// WithCaller returns a functional option that controls whether caller
// information is included in log output.
func WithCaller(enable bool) Option {
	return func(c config) config {
		return c.update(func(c *config) { c.caller = enable })
	}
}

// WithPretty returns a functional option that controls whether log output
// is colorized and, for JSON, indented.
func WithPretty(enable bool) Option {
	return func(c config) config {
		return c.update(func(c *config) { c.pretty = enable })
	}
}

// timeLayout maps named layouts to their corresponding time.Time constants.
var timeLayout = map[string]string{
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"ansic":       time.ANSIC,
	"unixdate":    time.UnixDate,
	"rfc822":      time.RFC822,
	"kitchen":     time.Kitchen,
	"datetime":    time.DateTime,
	"timeonly":    time.TimeOnly,
	"stamp":       time.Stamp,
	"stampmilli":  time.StampMilli,
	"ms":          time.StampMilli,
	"stampmicro":  time.StampMicro,
	"us":          time.StampMicro,
	"none":        "",
}

func makeFormatTimeFunc(layout string) FormatTime {
	// Names are matched on their lower-case alphanumerics only.
	// Custom layouts are used verbatim.
	key := strings.Map(
		func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}

			return -1
		},
		strings.ToLower(layout),
	)

	if std, ok := timeLayout[key]; ok {
		layout = std
	}

	if key == "" || layout == "" {
		return func(time.Time) string { return "" }
	}

	return func(t time.Time) string { return t.Format(layout) }
}
