package lang

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// programMagic is the first line of every generated program.
const programMagic = "sassy 1"

// noImporter stands for a missing importer or fingerprint operand.
const noImporter = "-"

// generator is the code generation backend. It writes a program that,
// when run, reproduces the evaluation of a dynamic tree.
//
// Imports are resolved while generating: every imported file becomes one
// unit, and every import site calls it. Importers are embedded by value so
// the program can check its inputs for changes later.
type generator struct {
	*runtime

	units     map[string]string
	stack     []string
	importers map[Importer]string

	header strings.Builder
	body   strings.Builder
	files  int
	bytes  int
}

// Generate compiles root into program text. The program is run with
// [CompileProgram] and [Program.Run].
func Generate(ctx context.Context, root *Node, opts ...Option) (string, error) {
	g := newGenerator(ctx, makeOptions(opts...))

	return g.generate(root, nil)
}

// GenerateFile resolves name through the configured importers, parses it
// and compiles it into program text. The program records the fingerprint
// of the entry file as well as of each import.
func GenerateFile(ctx context.Context, name string, opts ...Option) (string, error) {
	o := makeOptions(opts...)

	f, root, err := loadEntry(ctx, o, name)
	if err != nil {
		return "", err
	}

	return newGenerator(ctx, o).generate(root, f)
}

func newGenerator(ctx context.Context, opts *options) *generator {
	return &generator{
		runtime:   newRuntime(ctx, opts, nil),
		units:     make(map[string]string),
		importers: make(map[Importer]string),
	}
}

func (g *generator) generate(root *Node, entry *File) (string, error) {
	if root == nil || root.Kind != KindRoot {
		return "", ErrInvalidNode.Wrap(errors.New("expected a root node"))
	}

	if err := CheckNesting(root); err != nil {
		return "", err
	}

	if entry == nil {
		name := g.opts.filename
		if name == "" {
			name = root.Source.File
		}

		entry = &File{Path: name, Importer: g.opts.importer}
	}

	fr := g.rootFrame(nil, entry)
	g.stack = append(g.stack[:0], entry.Path)

	var main strings.Builder

	if err := g.block(&main, root.Children, fr, 1); err != nil {
		return "", err
	}

	imp, err := g.importerID(entry.Importer)
	if err != nil {
		return "", err
	}

	fp := noImporter
	if entry.Data != nil {
		fp = strconv.FormatUint(entry.Fingerprint(), 16)
	}

	var out strings.Builder

	out.WriteString(programMagic + "\n")
	out.WriteString(g.header.String())
	out.WriteString(g.body.String())
	out.WriteString("root " + strconv.Quote(entry.Path) + " " + imp + " " + fp + "\n")
	out.WriteString(main.String())
	out.WriteString("end\n")

	g.opts.logger.TraceContext(g.ctx, "program generated",
		slog.String("file", entry.Path),
		slog.Int("units", g.files),
		slog.String("imported", humanize.Bytes(uint64(g.bytes))),
		slog.String("size", humanize.Bytes(uint64(out.Len()))),
	)

	return out.String(), nil
}

// importerID returns the identifier of imp in the program header, adding
// it on first use.
func (g *generator) importerID(imp Importer) (string, error) {
	if imp == nil {
		return noImporter, nil
	}

	if id, ok := g.importers[imp]; ok {
		return id, nil
	}

	data, err := MarshalImporter(imp)
	if err != nil {
		return "", err
	}

	id := g.env.UniqueIdent("importer")
	g.importers[imp] = id
	g.header.WriteString("importer " + id + " " + strconv.Quote(string(data)) + "\n")

	return id, nil
}

// unit returns the name of the unit compiled from f, generating it on
// first use.
func (g *generator) unit(f *File, src Source) (string, error) {
	if slices.Contains(g.stack, f.Path) {
		return "", ErrImportCycle.With(
			slog.String("path", f.Path),
			slog.Any("stack", slices.Clone(g.stack)),
		).At(src)
	}

	if name, ok := g.units[f.Path]; ok {
		return name, nil
	}

	tree, err := g.opts.parser(g.ctx, f)
	if err != nil {
		return "", err
	}

	if err := CheckNesting(tree); err != nil {
		return "", err
	}

	g.stack = append(g.stack, f.Path)
	defer func() { g.stack = g.stack[:len(g.stack)-1] }()

	fr := g.rootFrame(nil, f)

	var body strings.Builder

	if err := g.block(&body, tree.Children, fr, 1); err != nil {
		return "", err
	}

	imp, err := g.importerID(f.Importer)
	if err != nil {
		return "", err
	}

	name := g.env.UniqueIdent("import")
	g.units[f.Path] = name
	g.files++
	g.bytes += len(f.Data)

	g.body.WriteString("unit " + name + " " + imp + " " + strconv.Quote(f.Path) + " " +
		strconv.FormatUint(f.Fingerprint(), 16) + "\n")
	g.body.WriteString(body.String())
	g.body.WriteString("end\n")

	return name, nil
}

// emitter writes the instructions of one block.
type emitter struct {
	w     *strings.Builder
	depth int
}

func (e emitter) line(src Source, op string, args ...string) {
	e.w.WriteString(strings.Repeat("  ", e.depth))

	if src.Line > 0 {
		e.w.WriteString("@" + strconv.Itoa(src.Line) + ":" + strconv.Itoa(src.Column) + " ")
	}

	e.w.WriteString(op)

	for _, a := range args {
		e.w.WriteByte(' ')
		e.w.WriteString(a)
	}

	e.w.WriteByte('\n')
}

func (e emitter) end() {
	e.w.WriteString(strings.Repeat("  ", e.depth) + "end\n")
}

func q(s string) string { return strconv.Quote(s) }

func (g *generator) block(w *strings.Builder, nodes []*Node, fr *frame, depth int) error {
	for _, n := range nodes {
		if err := g.node(w, n, fr, depth); err != nil {
			return at(err, n.Source)
		}
	}

	return nil
}

//nolint:gocyclo,cyclop,funlen
func (g *generator) node(w *strings.Builder, n *Node, fr *frame, depth int) error {
	e := emitter{w: w, depth: depth}
	src := n.Source

	nested := func(nodes []*Node) error {
		if err := g.block(w, nodes, fr, depth+1); err != nil {
			return err
		}

		e.end()

		return nil
	}

	switch n.Kind {
	case KindRule:
		e.line(src, "rule", q(string(n.Name)))

		return nested(n.Children)

	case KindProp:
		e.line(src, "prop", q(string(n.Name)), q(string(n.Value)))

		return nested(n.Children)

	case KindVariable:
		args := []string{q(string(n.Name)), q(string(n.Value))}
		if n.Global {
			args = append(args, "global")
		}

		if n.Default {
			args = append(args, "default")
		}

		e.line(src, "var", args...)

	case KindFunction, KindMixin:
		e.line(src, n.Kind.String(), q(string(n.Name)))

		inner := emitter{w: w, depth: depth + 1}
		for _, p := range n.Params {
			if p.HasDefault {
				inner.line(Source{}, "param", q(p.Name), q(string(p.Default)))
			} else {
				inner.line(Source{}, "param", q(p.Name))
			}
		}

		return nested(n.Children)

	case KindInclude:
		e.line(src, "include", q(string(n.Name)))

		inner := emitter{w: w, depth: depth + 1}
		for _, a := range n.Args {
			inner.line(Source{}, "arg", q(string(a)))
		}

		for _, a := range n.KwArgs {
			inner.line(Source{}, "kwarg", q(a.Name), q(string(a.Value)))
		}

		return nested(n.Children)

	case KindContent:
		e.line(src, "content")

	case KindReturn:
		e.line(src, "return", q(n.Expr))

	case KindImport:
		name := string(n.Name)
		if isCSSImport(name) {
			e.line(src, "css-import", q(cssImportText(name)))

			return nil
		}

		f, err := g.resolveImport(fr, name, src)
		if err != nil {
			return err
		}

		unit, err := g.unit(f, src)
		if err != nil {
			return err
		}

		e.line(src, "call", unit)

	case KindComment:
		if !n.Silent {
			e.line(src, "comment", q(string(n.Value)))
		}

	case KindCSSImport:
		e.line(src, "css-import", q(string(n.Value)))

	case KindExtend:
		args := []string{q(string(n.Name))}
		if n.Optional {
			args = append(args, "optional")
		}

		e.line(src, "extend", args...)

	case KindIf:
		e.line(src, "if", q(n.Expr))

		if err := g.block(w, n.Children, fr, depth+1); err != nil {
			return err
		}

		if len(n.Else) > 0 {
			e.line(Source{}, "else")
		}

		return nested(n.Else)

	case KindEach:
		args := []string{q(n.Expr)}
		for _, v := range n.Vars {
			args = append(args, q(v))
		}

		e.line(src, "each", args...)

		return nested(n.Children)

	case KindFor:
		bound := "to"
		if n.Inclusive {
			bound = "through"
		}

		e.line(src, "for", q(n.Vars[0]), q(n.Expr), q(n.To), bound)

		return nested(n.Children)

	case KindWhile:
		e.line(src, "while", q(n.Expr))

		return nested(n.Children)

	case KindDebug, KindWarn, KindError:
		e.line(src, n.Kind.String(), q(string(n.Value)))

	default:
		return ErrInvalidNode.With(slog.String("kind", n.Kind.String()))
	}

	return nil
}
