package lang

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// evaluator is the backend that interprets a dynamic tree directly.
// Closure bodies are []*Node.
type evaluator struct {
	*runtime

	// trees holds each imported file parsed and validated, by canonical
	// path. A file is parsed once per compile no matter how often it is
	// imported.
	trees map[string]*Node

	// stack holds the canonical paths of the files being evaluated, the
	// entry file first.
	stack []string
}

func newEvaluator(ctx context.Context, opts *options) *evaluator {
	ev := &evaluator{
		runtime: newRuntime(ctx, opts, nil),
		trees:   make(map[string]*Node),
	}
	ev.backend = ev

	return ev
}

// Evaluate rewrites the dynamic tree root into a static tree holding only
// rules, properties, comments, CSS imports and extend directives. Rules in
// the result carry their resolved selectors.
func Evaluate(ctx context.Context, root *Node, opts ...Option) (*Node, error) {
	ev := newEvaluator(ctx, makeOptions(opts...))

	out, err := ev.evaluate(root)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// entry returns the file record of the stylesheet being compiled.
func (ev *evaluator) entry(root *Node) *File {
	name := ev.opts.filename
	if name == "" {
		name = root.Source.File
	}

	return &File{Path: name, Importer: ev.opts.importer}
}

func (ev *evaluator) evaluate(root *Node) (*Node, error) {
	fr, err := ev.start(root)
	if err != nil {
		return nil, err
	}

	if err := ev.block(root.Children, fr); err != nil {
		return nil, err
	}

	return fr.target, nil
}

// start validates root and returns the top-level frame for it.
func (ev *evaluator) start(root *Node) (*frame, error) {
	if root == nil || root.Kind != KindRoot {
		return nil, ErrInvalidNode.Wrap(errors.New("expected a root node"))
	}

	if err := CheckNesting(root); err != nil {
		return nil, err
	}

	file := ev.entry(root)

	ev.opts.logger.TraceContext(ev.ctx, "evaluate",
		slog.String("file", file.Path),
		slog.Int("statements", len(root.Children)),
	)

	ev.stack = append(ev.stack[:0], file.Path)

	return ev.rootFrame(NewRoot(file.Path), file), nil
}

// run implements backend.
func (ev *evaluator) run(body any, fr *frame) error {
	nodes, _ := body.([]*Node)

	return ev.block(nodes, fr)
}

func (ev *evaluator) block(nodes []*Node, fr *frame) error {
	for _, n := range nodes {
		if err := ev.ctx.Err(); err != nil {
			return err
		}

		if err := ev.node(n, fr); err != nil {
			return at(err, n.Source)
		}

		if fr.returned() {
			return nil
		}
	}

	return nil
}

// inner runs nodes in a nested scope of fr.
func (ev *evaluator) inner(nodes []*Node) func(*frame) error {
	return func(fr *frame) error { return ev.block(nodes, fr) }
}

//nolint:gocyclo,cyclop,funlen
func (ev *evaluator) node(n *Node, fr *frame) error {
	switch n.Kind {
	case KindRule:
		sel, err := ev.text(fr, n.Name)
		if err != nil {
			return err
		}

		child, err := ev.rule(fr, sel, n.Source)
		if err != nil {
			return err
		}
		defer ev.leave(child)

		return ev.block(n.Children, child)

	case KindProp:
		name, err := ev.text(fr, n.Name)
		if err != nil {
			return err
		}

		value, err := ev.interp(fr, n.Value)
		if err != nil {
			return err
		}

		child := ev.prop(fr, name, value, n.Source)
		defer ev.leave(child)

		return ev.block(n.Children, child)

	case KindVariable:
		return ev.assign(fr, string(n.Name), n.Global, n.Default, func() (any, error) {
			return ev.interp(fr, n.Value)
		})

	case KindFunction:
		ev.declareFn(fr, string(n.Name), n.Params, n.Children)

	case KindMixin:
		ev.declareMixin(fr, string(n.Name), n.Params, n.Children)

	case KindInclude:
		args, kwargs, err := ev.arguments(fr, n)
		if err != nil {
			return err
		}

		var content *Closure
		if len(n.Children) > 0 {
			content = ev.contentBlock(fr, n.Children)
		}

		return ev.include(fr, string(n.Name), args, kwargs, content)

	case KindContent:
		return ev.content(fr)

	case KindReturn:
		if fr.ret == nil {
			return ErrStructure.Wrap(errors.New("return outside function"))
		}

		v, err := ev.eval(fr, n.Expr)
		if err != nil {
			return err
		}

		fr.ret.value, fr.ret.done = v, true

	case KindImport:
		return ev.importFile(fr, string(n.Name), n.Source)

	case KindComment:
		if n.Silent {
			return nil
		}

		text, err := ev.text(fr, n.Value)
		if err != nil {
			return err
		}

		ev.comment(fr, text, n.Source)

	case KindCSSImport:
		text, err := ev.text(fr, n.Value)
		if err != nil {
			return err
		}

		ev.cssImport(fr, text, n.Source)

	case KindExtend:
		if fr.parent == nil {
			return ErrStructure.Wrap(errors.New("extend outside rule"))
		}

		text, err := ev.text(fr, n.Name)
		if err != nil {
			return err
		}

		ev.extend(fr, text, n.Optional, n.Source)

	case KindIf:
		ok, err := ev.condition(fr, n.Expr)
		if err != nil {
			return err
		}

		if ok {
			return ev.scoped(fr, ev.inner(n.Children))
		}

		return ev.scoped(fr, ev.inner(n.Else))

	case KindEach:
		v, err := ev.eval(fr, n.Expr)
		if err != nil {
			return err
		}

		return ev.each(fr, n.Vars, v, ev.inner(n.Children))

	case KindFor:
		from, err := ev.eval(fr, n.Expr)
		if err != nil {
			return err
		}

		to, err := ev.eval(fr, n.To)
		if err != nil {
			return err
		}

		return ev.forRange(fr, n.Vars[0], from, to, n.Inclusive, ev.inner(n.Children))

	case KindWhile:
		return ev.while(fr,
			func() (bool, error) { return ev.condition(fr, n.Expr) },
			ev.inner(n.Children),
		)

	case KindDebug, KindWarn, KindError:
		text, err := ev.text(fr, n.Value)
		if err != nil {
			return err
		}

		return ev.message(n.Kind, text, n.Source)

	default:
		return ErrInvalidNode.With(slog.String("kind", n.Kind.String()))
	}

	return nil
}

// arguments evaluates the arguments of an include.
func (ev *evaluator) arguments(fr *frame, n *Node) ([]any, []namedValue, error) {
	args := make([]any, len(n.Args))

	for i, a := range n.Args {
		v, err := ev.interp(fr, a)
		if err != nil {
			return nil, nil, err
		}

		args[i] = v
	}

	kwargs := make([]namedValue, len(n.KwArgs))

	for i, a := range n.KwArgs {
		v, err := ev.interp(fr, a.Value)
		if err != nil {
			return nil, nil, err
		}

		kwargs[i] = namedValue{name: a.Name, value: v}
	}

	return args, kwargs, nil
}

// importFile splices the evaluated content of the named file into fr.
func (ev *evaluator) importFile(fr *frame, name string, src Source) error {
	if isCSSImport(name) {
		ev.cssImport(fr, cssImportText(name), src)

		return nil
	}

	f, err := ev.resolveImport(fr, name, src)
	if err != nil {
		return err
	}

	if slices.Contains(ev.stack, f.Path) {
		return ErrImportCycle.With(
			slog.String("path", f.Path),
			slog.Any("stack", slices.Clone(ev.stack)),
		).At(src)
	}

	tree, err := ev.tree(f)
	if err != nil {
		return err
	}

	ev.stack = append(ev.stack, f.Path)
	defer func() { ev.stack = ev.stack[:len(ev.stack)-1] }()

	child := *fr
	child.file = f

	if f.Importer != nil {
		child.importer = f.Importer
	}

	return ev.block(tree.Children, &child)
}

// tree returns the validated tree of f, parsing it on first use.
func (ev *evaluator) tree(f *File) (*Node, error) {
	if t, ok := ev.trees[f.Path]; ok {
		return t, nil
	}

	t, err := ev.opts.parser(ev.ctx, f)
	if err != nil {
		return nil, err
	}

	if err := CheckNesting(t); err != nil {
		return nil, err
	}

	ev.opts.logger.TraceContext(ev.ctx, "import parsed",
		slog.String("path", f.Path),
		slog.Int("statements", len(t.Children)),
	)

	ev.trees[f.Path] = t

	return t, nil
}
