package lang

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// ParseYAML decodes a stylesheet document into a root node. Source ranges
// of the returned nodes name file.
//
// A document is either a sequence of statements or a mapping whose
// "children" key holds that sequence. Each statement is a mapping with
// exactly one key naming its [Kind] (for example "rule" or "var"),
// alongside the keys that kind accepts.
func ParseYAML(_ context.Context, data []byte, file string) (*Node, error) {
	f, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, ErrInvalidNode.Wrap(err).With(slog.String("file", file))
	}

	d := decoder{file: file}
	root := NewRoot(file)

	for _, doc := range f.Docs {
		body := unwrap(doc.Body)

		if m, ok := body.(*ast.MappingNode); ok {
			body = nil

			for _, mv := range m.Values {
				if key := keyText(mv.Key); key != "children" {
					return nil, d.fail(mv, "unexpected document key %q", key)
				}

				body = unwrap(mv.Value)
			}
		}

		if mv, ok := body.(*ast.MappingValueNode); ok {
			if key := keyText(mv.Key); key != "children" {
				return nil, d.fail(mv, "unexpected document key %q", key)
			}

			body = unwrap(mv.Value)
		}

		children, err := d.block(body)
		if err != nil {
			return nil, err
		}

		root.Append(children...)
	}

	return root, nil
}

type decoder struct {
	file string
}

// field is one key of a statement mapping.
type field struct {
	key   string
	value ast.Node
	at    ast.Node
}

func (d decoder) source(n ast.Node) Source {
	if n == nil || n.GetToken() == nil {
		return Source{File: d.file}
	}

	pos := n.GetToken().Position

	return Source{File: d.file, Line: pos.Line, Column: pos.Column}
}

func (d decoder) fail(n ast.Node, format string, args ...any) error {
	return ErrInvalidNode.Wrap(fmt.Errorf(format, args...)).At(d.source(n))
}

// block decodes a sequence of statements. A null node is an empty block.
func (d decoder) block(n ast.Node) ([]*Node, error) {
	switch n := unwrap(n).(type) {
	case nil, *ast.NullNode:
		return nil, nil

	case *ast.SequenceNode:
		var out []*Node

		for _, v := range n.Values {
			nodes, err := d.statement(v)
			if err != nil {
				return nil, err
			}

			out = append(out, nodes...)
		}

		return out, nil

	default:
		return nil, d.fail(n, "expected a sequence of statements")
	}
}

func fields(n ast.Node) ([]field, bool) {
	switch n := unwrap(n).(type) {
	case *ast.MappingNode:
		out := make([]field, len(n.Values))
		for i, mv := range n.Values {
			out[i] = field{key: keyText(mv.Key), value: mv.Value, at: mv.Key}
		}

		return out, true

	case *ast.MappingValueNode:
		return []field{{key: keyText(n.Key), value: n.Value, at: n.Key}}, true

	default:
		return nil, false
	}
}

// statement decodes one statement. An import of several names yields one
// node per name.
func (d decoder) statement(n ast.Node) ([]*Node, error) {
	fs, ok := fields(n)
	if !ok {
		return nil, d.fail(n, "expected a statement mapping")
	}

	var (
		node  *Node
		kindF field
		attrs = make(map[string]field, len(fs))
	)

	for _, f := range fs {
		k, isKind := ParseKind(f.key)
		if !isKind || k == KindRoot {
			attrs[f.key] = f
			continue
		}

		if node != nil {
			return nil, d.fail(f.at, "statement has both %q and %q", node.Kind, f.key)
		}

		node = &Node{Kind: k, Source: d.source(f.at)}
		kindF = f
	}

	if node == nil {
		return nil, d.fail(n, "statement has no kind key")
	}

	var err error

	take := func(key string) (ast.Node, bool) {
		f, ok := attrs[key]
		delete(attrs, key)

		return f.value, ok
	}

	text := func(key string) (string, bool) {
		v, ok := take(key)
		if !ok || err != nil {
			return "", false
		}

		var s string
		s, err = d.scalar(v)

		return s, err == nil
	}

	flag := func(key string) bool {
		s, ok := text(key)

		return ok && s == "true"
	}

	children := func() []*Node {
		v, ok := take("children")
		if !ok || err != nil {
			return nil
		}

		var out []*Node
		out, err = d.block(v)

		return out
	}

	head := ""

	switch node.Kind {
	case KindContent, KindImport, KindEach:
	default:
		if head, err = d.scalar(kindF.value); err != nil {
			return nil, err
		}
	}

	switch node.Kind {
	case KindRule, KindExtend:
		node.Name = Interp(head)
		node.Optional = flag("optional")
		node.Children = children()

	case KindProp:
		node.Name = Interp(head)
		if v, ok := text("value"); ok {
			node.Value = Interp(v)
		}

		node.Children = children()

	case KindVariable:
		node.Name = Interp(head)
		v, _ := text("value")
		node.Value = Interp(v)
		node.Global = flag("global")
		node.Default = flag("default")

	case KindFunction, KindMixin:
		node.Name = Interp(head)
		if v, ok := take("params"); ok {
			node.Params, err = d.params(v)
		}

		node.Children = children()

	case KindInclude:
		node.Name = Interp(head)
		if v, ok := take("args"); ok {
			node.Args, err = d.args(v)
		}

		if v, ok := take("kwargs"); ok && err == nil {
			node.KwArgs, err = d.kwargs(v)
		}

		node.Children = children()

	case KindReturn, KindWhile:
		node.Expr = head
		node.Children = children()

	case KindIf:
		node.Expr = head
		node.Children = children()

		if v, ok := take("else"); ok && err == nil {
			node.Else, err = d.elseBranch(v)
		}

	case KindEach:
		node.Vars, err = d.names(kindF.value)
		node.Expr, _ = text("in")
		node.Children = children()

	case KindFor:
		node.Vars = []string{head}
		node.Expr, _ = text("from")

		if to, ok := text("through"); ok {
			node.To, node.Inclusive = to, true
		} else if to, ok := text("to"); ok {
			node.To = to
		}

		node.Children = children()

	case KindComment:
		node.Value = Interp(head)
		node.Silent = flag("silent")

	case KindCSSImport, KindDebug, KindWarn, KindError:
		node.Value = Interp(head)

	case KindContent:

	case KindImport:
		names, nerr := d.names(kindF.value)
		if nerr != nil {
			return nil, nerr
		}

		out := make([]*Node, len(names))
		for i, name := range names {
			out[i] = &Node{Kind: KindImport, Name: Interp(name), Source: node.Source}
		}

		return out, d.leftover(attrs)
	}

	if err != nil {
		return nil, err
	}

	if err := d.check(node); err != nil {
		return nil, err
	}

	return []*Node{node}, d.leftover(attrs)
}

// check rejects statements missing a required key.
func (d decoder) check(n *Node) error {
	var missing string

	switch n.Kind {
	case KindEach:
		if n.Expr == "" {
			missing = "in"
		}
	case KindFor:
		switch {
		case n.Expr == "":
			missing = "from"
		case n.To == "":
			missing = "through"
		}
	case KindIf, KindWhile, KindReturn:
		if n.Expr == "" {
			missing = n.Kind.String()
		}
	}

	if missing == "" {
		return nil
	}

	return ErrInvalidNode.Wrap(fmt.Errorf("%s: missing %q", n.Kind, missing)).At(n.Source)
}

func (d decoder) leftover(attrs map[string]field) error {
	for _, f := range attrs {
		return d.fail(f.at, "unexpected key %q", f.key)
	}

	return nil
}

func (d decoder) elseBranch(n ast.Node) ([]*Node, error) {
	if _, ok := unwrap(n).(*ast.SequenceNode); ok {
		return d.block(n)
	}

	return d.statement(n)
}

// scalar returns the source text of a scalar node.
func (d decoder) scalar(n ast.Node) (string, error) {
	switch n := unwrap(n).(type) {
	case nil, *ast.NullNode:
		return "", nil
	case *ast.StringNode:
		return n.Value, nil
	case *ast.LiteralNode:
		return strings.TrimSuffix(n.Value.Value, "\n"), nil
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode,
		*ast.InfinityNode, *ast.NanNode:
		return n.GetToken().Value, nil
	default:
		return "", d.fail(n, "expected a scalar value")
	}
}

// names decodes a scalar or a sequence of scalars.
func (d decoder) names(n ast.Node) ([]string, error) {
	seq, ok := unwrap(n).(*ast.SequenceNode)
	if !ok {
		s, err := d.scalar(n)
		if err != nil {
			return nil, err
		}

		return []string{s}, nil
	}

	out := make([]string, len(seq.Values))

	for i, v := range seq.Values {
		s, err := d.scalar(v)
		if err != nil {
			return nil, err
		}

		out[i] = s
	}

	return out, nil
}

// params decodes parameters given as "name", "name: default" or
// {name: default}.
func (d decoder) params(n ast.Node) ([]Param, error) {
	seq, ok := unwrap(n).(*ast.SequenceNode)
	if !ok {
		return nil, d.fail(n, "params: expected a sequence")
	}

	out := make([]Param, 0, len(seq.Values))

	for _, v := range seq.Values {
		if fs, ok := fields(v); ok {
			if len(fs) != 1 {
				return nil, d.fail(v, "params: expected one name per entry")
			}

			def, err := d.scalar(fs[0].value)
			if err != nil {
				return nil, err
			}

			out = append(out, Param{Name: fs[0].key, Default: Interp(def), HasDefault: true})

			continue
		}

		s, err := d.scalar(v)
		if err != nil {
			return nil, err
		}

		name, def, hasDefault := strings.Cut(s, ":")
		out = append(out, Param{
			Name:       strings.TrimSpace(name),
			Default:    Interp(strings.TrimSpace(def)),
			HasDefault: hasDefault,
		})
	}

	return out, nil
}

func (d decoder) args(n ast.Node) ([]Interp, error) {
	names, err := d.names(n)
	if err != nil {
		return nil, err
	}

	out := make([]Interp, len(names))
	for i, s := range names {
		out[i] = Interp(s)
	}

	return out, nil
}

func (d decoder) kwargs(n ast.Node) ([]Arg, error) {
	fs, ok := fields(n)
	if !ok {
		if _, null := unwrap(n).(*ast.NullNode); null {
			return nil, nil
		}

		return nil, d.fail(n, "kwargs: expected a mapping")
	}

	out := make([]Arg, len(fs))

	for i, f := range fs {
		v, err := d.scalar(f.value)
		if err != nil {
			return nil, err
		}

		out[i] = Arg{Name: f.key, Value: Interp(v)}
	}

	return out, nil
}

// unwrap strips tags and anchors from n.
func unwrap(n ast.Node) ast.Node {
	for {
		switch v := n.(type) {
		case *ast.TagNode:
			n = v.Value
		case *ast.AnchorNode:
			n = v.Value
		default:
			return n
		}
	}
}

func keyText(k ast.MapKeyNode) string {
	if s, ok := unwrap(k).(*ast.StringNode); ok {
		return s.Value
	}

	if k == nil || k.GetToken() == nil {
		return ""
	}

	return k.GetToken().Value
}

// ToMap converts n to the document structure [ParseYAML] accepts. A root
// node converts to its sequence of statements.
func (n *Node) ToMap() any {
	if n.Kind == KindRoot {
		return toSeq(n.Children)
	}

	m := yaml.MapSlice{{Key: n.Kind.String(), Value: n.head()}}

	add := func(key string, value any) {
		m = append(m, yaml.MapItem{Key: key, Value: value})
	}

	switch n.Kind {
	case KindProp:
		if n.Value != "" {
			add("value", string(n.Value))
		}
	case KindVariable:
		add("value", string(n.Value))
		if n.Global {
			add("global", true)
		}

		if n.Default {
			add("default", true)
		}
	case KindFunction, KindMixin:
		if len(n.Params) > 0 {
			params := make([]any, len(n.Params))

			for i, p := range n.Params {
				params[i] = p.Name
				if p.HasDefault {
					params[i] = yaml.MapSlice{{Key: p.Name, Value: string(p.Default)}}
				}
			}

			add("params", params)
		}
	case KindInclude:
		if len(n.Args) > 0 {
			args := make([]any, len(n.Args))
			for i, a := range n.Args {
				args[i] = string(a)
			}

			add("args", args)
		}

		if len(n.KwArgs) > 0 {
			kw := make(yaml.MapSlice, len(n.KwArgs))
			for i, a := range n.KwArgs {
				kw[i] = yaml.MapItem{Key: a.Name, Value: string(a.Value)}
			}

			add("kwargs", kw)
		}
	case KindEach:
		add("in", n.Expr)
	case KindFor:
		add("from", n.Expr)
		if n.Inclusive {
			add("through", n.To)
		} else {
			add("to", n.To)
		}
	case KindComment:
		if n.Silent {
			add("silent", true)
		}
	case KindExtend:
		if n.Optional {
			add("optional", true)
		}
	}

	if len(n.Children) > 0 {
		add("children", toSeq(n.Children))
	}

	if len(n.Else) > 0 {
		add("else", toSeq(n.Else))
	}

	return m
}

// head returns the value of the kind key of n.
func (n *Node) head() any {
	switch n.Kind {
	case KindRule, KindProp, KindVariable, KindFunction, KindMixin,
		KindInclude, KindImport, KindExtend:
		return string(n.Name)
	case KindReturn, KindIf, KindWhile:
		return n.Expr
	case KindEach:
		if len(n.Vars) == 1 {
			return n.Vars[0]
		}

		vars := make([]any, len(n.Vars))
		for i, v := range n.Vars {
			vars[i] = v
		}

		return vars
	case KindFor:
		if len(n.Vars) > 0 {
			return n.Vars[0]
		}

		return ""
	case KindComment, KindCSSImport, KindDebug, KindWarn, KindError:
		return string(n.Value)
	default:
		return nil
	}
}

func toSeq(nodes []*Node) []any {
	out := make([]any, len(nodes))
	for i, c := range nodes {
		out[i] = c.ToMap()
	}

	return out
}

// MarshalYAML encodes n in the document format.
func (n *Node) MarshalYAML() (any, error) {
	if n == nil {
		return nil, errors.New("nil node")
	}

	return n.ToMap(), nil
}
