package lang

import (
	"context"
	"slices"
)

// Session is a compiled stylesheet whose environment stays live, so that
// expressions and further statements can be evaluated against its
// top-level bindings.
type Session struct {
	ev *evaluator
	fr *frame
}

// NewSession evaluates root and returns a session over the result.
func NewSession(ctx context.Context, root *Node, opts ...Option) (*Session, error) {
	return newSession(ctx, makeOptions(opts...), root)
}

// OpenSession resolves name through the configured importers and returns
// a session over the evaluated file. Imports are resolved relative to it.
func OpenSession(ctx context.Context, name string, opts ...Option) (*Session, error) {
	o := makeOptions(opts...)

	_, root, err := loadEntry(ctx, o, name)
	if err != nil {
		return nil, err
	}

	return newSession(ctx, o, root)
}

func newSession(ctx context.Context, o *options, root *Node) (*Session, error) {
	ev := newEvaluator(ctx, o)

	fr, err := ev.start(root)
	if err != nil {
		return nil, err
	}

	if err := ev.block(root.Children, fr); err != nil {
		return nil, err
	}

	return &Session{ev: ev, fr: fr}, nil
}

// Eval evaluates an expression in the top-level scope.
func (s *Session) Eval(source string) (any, error) {
	return s.ev.eval(s.fr, source)
}

// Exec evaluates statements in the YAML document format at the top level.
// Their output is appended to the session's tree.
func (s *Session) Exec(ctx context.Context, data []byte) error {
	root, err := ParseYAML(ctx, data, "<session>")
	if err != nil {
		return err
	}

	if err := CheckNesting(root); err != nil {
		return err
	}

	return s.ev.block(root.Children, s.fr)
}

// Names returns the sorted names of the top-level variables, functions
// and mixins. Variable names carry their "$" prefix.
func (s *Session) Names() (vars, fns, mixins []string) {
	return s.ev.env.Names(RootScope)
}

// Signature returns the parameter names of the function name visible at
// the top level. User functions shadow builtins. Parameters with a default
// are suffixed with "?".
func (s *Session) Signature(name string) ([]string, bool) {
	if c := s.ev.env.LookupFn(RootScope, name); c != nil && c.Body != nil {
		params := make([]string, len(c.Params))
		for i, p := range c.Params {
			params[i] = p.Name
			if p.HasDefault {
				params[i] += "?"
			}
		}

		return params, true
	}

	if b, ok := builtins[normName(name)]; ok {
		return slices.Clone(b.params), true
	}

	return nil, false
}

// Tree returns the static tree produced so far.
func (s *Session) Tree() *Node { return s.fr.target }

// CSS flattens, extends and serializes the output produced so far.
func (s *Session) CSS() (string, error) {
	sheet, err := finish(s.fr.target)
	if err != nil {
		return "", err
	}

	return FormatCSS(sheet), nil
}
