package lang

import (
	"errors"
	"log/slog"
	"strings"
)

// Predefined errors (sentinel values).
//
// Every error returned by this package matches one of these with
// [errors.Is], including errors derived through [Error.Wrap], [Error.With]
// and [Error.At].
var (
	ErrStructure         = NewError("invalid nesting")
	ErrUnresolved        = NewError("undefined reference")
	ErrArgument          = NewError("invalid argument")
	ErrUnsatisfiedExtend = NewError("extend target not found")
	ErrImportCycle       = NewError("import cycle")
	ErrImportNotFound    = NewError("import not found")
	ErrExprCompile       = NewError("expression compilation failed")
	ErrExprEvaluate      = NewError("expression evaluation failed")
	ErrSelector          = NewError("invalid selector")
	ErrInvalidNode       = NewError("invalid node")
	ErrReadInput         = NewError("failed to read input")
	ErrProgram           = NewError("invalid program")
	ErrUser              = NewError("error")
	ErrInvalidImporter   = NewError("invalid importer")
	ErrMaxDepthExceeded  = NewError("maximum call depth exceeded")
	ErrMaxIterations     = NewError("maximum loop iterations exceeded")
	ErrNoReturn          = NewError("function finished without return")
)

// Error represents an error with optional structured logging attributes
// and the source range of the construct that caused it.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	base  *Error      // Sentinel this error derives from (for errors.Is)
	attrs []slog.Attr // Attributes for structured logging
	src   *Source
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
//
// The message has the form "file:line:col: <msg>: <err>", where the
// position prefix is present only when a source range is attached.
func (e *Error) Error() string {
	part := make([]string, 0, 3)

	if e.src != nil && e.src.Line > 0 {
		part = append(part, e.src.String())
	}

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is the sentinel e was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e == t || (e.base != nil && e.base == t.root())
}

func (e *Error) root() *Error {
	if e.base != nil {
		return e.base
	}

	return e
}

// Source returns the source range attached to e, if any.
func (e *Error) Source() (Source, bool) {
	if e.src == nil {
		return Source{}, false
	}

	return *e.src, true
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+5)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	if e.src != nil {
		attrs = append(attrs,
			slog.String("file", e.src.File),
			slog.Int("line", e.src.Line),
			slog.Int("column", e.src.Column),
		)
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	c := e.clone()
	c.err = err

	return c
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	c := e.clone()
	c.attrs = make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(c.attrs, e.attrs)
	copy(c.attrs[len(e.attrs):], attrs)

	return c
}

// At attaches a source range to the error. An error that already has a
// position keeps it, so the innermost construct is reported.
func (e *Error) At(src Source) *Error {
	if e.src != nil && e.src.Line > 0 {
		return e
	}

	c := e.clone()
	c.src = &src

	return c
}

func (e *Error) clone() *Error {
	base := e.base
	if base == nil && e.err == nil && e.src == nil && len(e.attrs) == 0 {
		// e itself is a sentinel.
		base = e
	}

	return &Error{
		msg:   e.msg,
		err:   e.err,
		base:  base,
		attrs: e.attrs,
		src:   e.src,
	}
}

// at attaches src to err unless some error in its chain already carries a
// source range.
func at(err error, src Source) error {
	if err == nil {
		return nil
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		if ee, ok := e.(*Error); ok && ee.src != nil {
			return err
		}
	}

	return WrapError(err).At(src)
}
