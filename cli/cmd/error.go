package cmd

import (
	"log/slog"
	"strings"
)

// Error represents a CLI command error with structured logging support.
type Error struct {
	msg   string
	err   error
	base  *Error
	attrs []slog.Attr
}

func NewError(msg string) *Error {
	return &Error{msg: msg}
}

func (e *Error) Error() string {
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is e or the sentinel e was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t == e || t == e.base
}

func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, base: e.sentinel(), attrs: e.attrs}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{msg: e.msg, err: e.err, base: e.sentinel(), attrs: newAttrs}
}

func (e *Error) sentinel() *Error {
	if e.base != nil {
		return e.base
	}

	return e
}

var (
	ErrWriteConfig  = NewError("write configuration file")
	ErrFileExists   = NewError("file exists (use --force to overwrite)")
	ErrWriteOutput  = NewError("write output")
	ErrStaleProgram = NewError("program is stale (regenerate with gen)")
	ErrFormat       = NewError("unknown output format")
)
