package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Styles used by the pretty handlers. Colors are dropped automatically when
// the output is not a terminal.
var (
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stringStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	numberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	trueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	falseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	nullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	levelStyle = map[Level]lipgloss.Style{
		LevelTrace: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
)

// prettyHandler is shared by the text and JSON pretty handlers. Attributes
// added with WithAttrs are kept pre-resolved in attrs, and group names are
// joined into a dotted key prefix.
type prettyHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	attrs  []slog.Attr
	prefix string
	json   bool
}

func newPrettyTextHandler(w io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	return &prettyHandler{opts: *opts, mu: &sync.Mutex{}, w: w}
}

func newPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	return &prettyHandler{opts: *opts, mu: &sync.Mutex{}, w: w, json: true}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := slog.LevelInfo
	if h.opts.Level != nil {
		floor = h.opts.Level.Level()
	}

	return level >= floor
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs)+4)

	if !r.Time.IsZero() {
		fields = h.appendReplaced(fields, slog.Time(slog.TimeKey, r.Time))
	}

	fields = h.appendReplaced(fields, slog.Any(slog.LevelKey, r.Level))

	if h.opts.AddSource {
		frame := r.Source()
		if frame != nil && frame.File != "" {
			fields = append(fields, slog.String(
				slog.SourceKey, frame.File+":"+strconv.Itoa(frame.Line),
			))
		}
	}

	fields = append(fields, slog.String(slog.MessageKey, r.Message))
	fields = append(fields, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		fields = flatten(fields, h.prefix, a)

		return true
	})

	var buf bytes.Buffer

	if h.json {
		h.writeJSON(&buf, fields)
	} else {
		h.writeText(&buf, fields)
	}

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)

	for _, a := range attrs {
		c.attrs = flatten(c.attrs, h.prefix, a)
	}

	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.prefix = h.prefix + name + "."

	return &c
}

// appendReplaced applies the ReplaceAttr hook (used for time layout and
// level names) to a builtin attribute.
func (h *prettyHandler) appendReplaced(
	fields []slog.Attr,
	a slog.Attr,
) []slog.Attr {
	if h.opts.ReplaceAttr != nil {
		a = h.opts.ReplaceAttr(nil, a)
	}

	if a.Equal(slog.Attr{}) {
		return fields
	}

	return append(fields, a)
}

// flatten resolves LogValuers and expands groups into dotted keys.
func flatten(fields []slog.Attr, prefix string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() != slog.KindGroup {
		if a.Key == "" {
			return fields
		}

		a.Key = prefix + a.Key

		return append(fields, a)
	}

	group := prefix
	if a.Key != "" {
		group += a.Key + "."
	}

	for _, ga := range a.Value.Group() {
		fields = flatten(fields, group, ga)
	}

	return fields
}

func (h *prettyHandler) writeText(buf *bytes.Buffer, fields []slog.Attr) {
	for i, a := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(keyStyle.Render(a.Key))
		buf.WriteByte('=')
		buf.WriteString(renderValue(a))
	}
}

func (h *prettyHandler) writeJSON(buf *bytes.Buffer, fields []slog.Attr) {
	buf.WriteString("{\n")

	for i, a := range fields {
		if i > 0 {
			buf.WriteString(",\n")
		}

		buf.WriteString("  ")
		buf.WriteString(keyStyle.Render(a.Key))
		buf.WriteString(": ")
		buf.WriteString(renderValue(a))
	}

	buf.WriteString("\n}")
}

// renderValue styles a single attribute value according to its kind.
func renderValue(a slog.Attr) string {
	v := a.Value

	switch v.Kind() {
	case slog.KindString:
		if a.Key == slog.LevelKey {
			s := v.String()

			return styleLevel(ParseLevel(s)).Render(s)
		}

		return stringStyle.Render(v.String())

	case slog.KindInt64:
		return numberStyle.Render(strconv.FormatInt(v.Int64(), 10))

	case slog.KindUint64:
		return numberStyle.Render(strconv.FormatUint(v.Uint64(), 10))

	case slog.KindFloat64:
		return numberStyle.Render(strconv.FormatFloat(v.Float64(), 'g', -1, 64))

	case slog.KindBool:
		if v.Bool() {
			return trueStyle.Render("true")
		}

		return falseStyle.Render("false")

	case slog.KindDuration:
		return numberStyle.Render(v.Duration().String())

	case slog.KindTime:
		return timeStyle.Render(v.Time().Format(time.RFC3339))

	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return nullStyle.Render("null")
		case slog.Level:
			return styleLevel(Level(x)).Render(strings.ToUpper(Level(x).String()))
		case error:
			return stringStyle.Render(x.Error())
		default:
			return stringStyle.Render(fmt.Sprint(x))
		}

	default:
		return stringStyle.Render(v.String())
	}
}

func styleLevel(l Level) lipgloss.Style {
	if s, ok := levelStyle[l]; ok {
		return s
	}

	return stringStyle
}
