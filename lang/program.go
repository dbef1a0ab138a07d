package lang

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// instr is one instruction of a program. Block instructions hold their
// nested instructions in body, and an if instruction holds its else branch
// in alt. Leading param, arg and kwarg lines of a block are moved into the
// dedicated fields.
type instr struct {
	op     string
	args   []string
	src    Source
	params []Param
	iargs  []Interp
	kwargs []Arg
	body   []*instr
	alt    []*instr
}

func (in *instr) flag(name string) bool { return slices.Contains(in.args, name) }

// unit is an imported file compiled into a program, or the entry file.
type unit struct {
	name        string
	path        string
	importer    Importer
	fingerprint uint64
	hasPrint    bool
	body        []*instr
}

// Program is a parsed, ready-to-run program produced by [Generate]. All
// expressions are compiled when the program is loaded. A Program is safe
// for concurrent use: each run has its own environment.
type Program struct {
	text      string
	importers map[string]Importer
	units     map[string]*unit
	root      *unit
	exprs     *exprCache
}

// blockOps are the instructions closed by "end".
//
//nolint:gochecknoglobals
var blockOps = map[string]bool{
	"rule": true, "prop": true, "function": true, "mixin": true,
	"include": true, "if": true, "each": true, "for": true, "while": true,
}

// minArgs is the number of operands each instruction requires.
//
//nolint:gochecknoglobals
var minArgs = map[string]int{
	"rule": 1, "prop": 2, "var": 2, "function": 1, "mixin": 1,
	"include": 1, "content": 0, "return": 1, "call": 1, "comment": 1,
	"css-import": 1, "extend": 1, "if": 1, "each": 2, "for": 4,
	"while": 1, "debug": 1, "warn": 1, "error": 1,
	"param": 1, "arg": 1, "kwarg": 2,
}

// programParser reads program text line by line.
type programParser struct {
	lines []string
	pos   int
	file  string
}

func (p *programParser) fail(format string, args ...any) error {
	return ErrProgram.Wrap(fmt.Errorf(format, args...)).With(slog.Int("line", p.pos))
}

// next returns the next non-blank line, trimmed, and its tokens.
func (p *programParser) next() (string, []string, error) {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		p.pos++

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		toks, err := lexLine(line)
		if err != nil {
			return "", nil, p.fail("%v", err)
		}

		return line, toks, nil
	}

	return "", nil, nil
}

// lexLine splits a line into bare words and Go-quoted strings.
func lexLine(line string) ([]string, error) {
	var out []string

	for line = strings.TrimSpace(line); line != ""; line = strings.TrimLeft(line, " \t") {
		if line[0] == '"' {
			quoted, err := strconv.QuotedPrefix(line)
			if err != nil {
				return nil, err
			}

			s, err := strconv.Unquote(quoted)
			if err != nil {
				return nil, err
			}

			out = append(out, s)
			line = line[len(quoted):]

			continue
		}

		i := strings.IndexAny(line, " \t")
		if i < 0 {
			i = len(line)
		}

		out = append(out, line[:i])
		line = line[i:]
	}

	return out, nil
}

// position consumes a leading "@line:col" token.
func (p *programParser) position(toks []string) (Source, []string, error) {
	src := Source{File: p.file}

	if len(toks) == 0 || !strings.HasPrefix(toks[0], "@") {
		return src, toks, nil
	}

	l, c, ok := strings.Cut(toks[0][1:], ":")
	if !ok {
		return src, nil, p.fail("malformed position %q", toks[0])
	}

	var err1, err2 error

	src.Line, err1 = strconv.Atoi(l)
	src.Column, err2 = strconv.Atoi(c)

	if err := errors.Join(err1, err2); err != nil {
		return src, nil, p.fail("malformed position %q: %v", toks[0], err)
	}

	return src, toks[1:], nil
}

// block reads instructions up to the closing "end". It stops at "else"
// when alt is true, reporting which terminator ended the block.
func (p *programParser) block(alt bool) ([]*instr, bool, error) {
	var out []*instr

	for {
		line, toks, err := p.next()
		if err != nil {
			return nil, false, err
		}

		switch {
		case toks == nil:
			return nil, false, p.fail("unexpected end of program")
		case line == "end":
			return out, false, nil
		case line == "else" && alt:
			return out, true, nil
		}

		in, err := p.instr(toks)
		if err != nil {
			return nil, false, err
		}

		out = append(out, in)
	}
}

func (p *programParser) instr(toks []string) (*instr, error) {
	src, toks, err := p.position(toks)
	if err != nil {
		return nil, err
	}

	if len(toks) == 0 {
		return nil, p.fail("missing instruction")
	}

	in := &instr{op: toks[0], args: toks[1:], src: src}

	need, ok := minArgs[in.op]
	if !ok {
		return nil, p.fail("unknown instruction %q", in.op)
	}

	if len(in.args) < need {
		return nil, p.fail("%s takes at least %d operands", in.op, need)
	}

	if !blockOps[in.op] {
		return in, nil
	}

	var hasElse bool

	if in.body, hasElse, err = p.block(in.op == "if"); err != nil {
		return nil, err
	}

	if hasElse {
		if in.alt, _, err = p.block(false); err != nil {
			return nil, err
		}
	}

	return in, in.header()
}

// header moves the leading param, arg and kwarg instructions of a block
// into in.
func (in *instr) header() error {
	i := 0

	for ; i < len(in.body); i++ {
		h := in.body[i]

		switch {
		case h.op == "param" && (in.op == "function" || in.op == "mixin"):
			p := Param{Name: h.args[0]}
			if len(h.args) > 1 {
				p.Default, p.HasDefault = Interp(h.args[1]), true
			}

			in.params = append(in.params, p)

		case h.op == "arg" && in.op == "include":
			in.iargs = append(in.iargs, Interp(h.args[0]))

		case h.op == "kwarg" && in.op == "include":
			in.kwargs = append(in.kwargs, Arg{Name: h.args[0], Value: Interp(h.args[1])})

		default:
			in.body = in.body[i:]

			return in.validate()
		}
	}

	in.body = nil

	return in.validate()
}

// validate rejects header instructions outside a block header.
func (in *instr) validate() error {
	for _, c := range slices.Concat(in.body, in.alt) {
		switch c.op {
		case "param", "arg", "kwarg":
			return ErrProgram.Wrap(fmt.Errorf("%s outside %s header", c.op, in.op)).At(c.src)
		}
	}

	return nil
}

// ParseProgram parses program text produced by [Generate].
func ParseProgram(text string) (*Program, error) {
	p := &programParser{lines: strings.Split(text, "\n")}
	prog := &Program{
		text:      text,
		importers: make(map[string]Importer),
		units:     make(map[string]*unit),
		exprs:     newExprCache(),
	}

	line, _, err := p.next()
	if err != nil {
		return nil, err
	}

	if line != programMagic {
		return nil, p.fail("not a program: expected %q", programMagic)
	}

	for {
		_, toks, err := p.next()
		if err != nil {
			return nil, err
		}

		if toks == nil {
			break
		}

		if err := prog.top(p, toks); err != nil {
			return nil, err
		}
	}

	if prog.root == nil {
		return nil, p.fail("program has no root")
	}

	for _, u := range prog.units {
		if err := prog.load(u.body); err != nil {
			return nil, err
		}
	}

	if err := prog.load(prog.root.body); err != nil {
		return nil, err
	}

	return prog, nil
}

// top parses one top-level declaration.
func (prog *Program) top(p *programParser, toks []string) error {
	switch op, args := toks[0], toks[1:]; {
	case op == "importer" && len(args) == 2:
		imp, err := UnmarshalImporter([]byte(args[1]))
		if err != nil {
			return err
		}

		prog.importers[args[0]] = imp

	case op == "unit" && len(args) == 4:
		u, err := prog.unit(p, args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}

		prog.units[u.name] = u

	case op == "root" && len(args) == 3:
		if prog.root != nil {
			return p.fail("duplicate root")
		}

		u, err := prog.unit(p, "root", args[1], args[0], args[2])
		if err != nil {
			return err
		}

		prog.root = u

	default:
		return p.fail("unexpected %q", strings.Join(toks, " "))
	}

	return nil
}

func (prog *Program) unit(p *programParser, name, imp, path, fp string) (*unit, error) {
	u := &unit{name: name, path: path}

	if imp != noImporter {
		var ok bool
		if u.importer, ok = prog.importers[imp]; !ok {
			return nil, p.fail("undeclared importer %q", imp)
		}
	}

	if fp != noImporter {
		var err error
		if u.fingerprint, err = strconv.ParseUint(fp, 16, 64); err != nil {
			return nil, p.fail("malformed fingerprint %q", fp)
		}

		u.hasPrint = true
	}

	p.file = path

	body, _, err := p.block(false)
	if err != nil {
		return nil, err
	}

	u.body = body

	return u, nil
}

// load compiles every expression of the instructions and checks that
// each called unit exists.
func (prog *Program) load(list []*instr) error {
	for _, in := range list {
		if err := prog.loadInstr(in); err != nil {
			return at(err, in.src)
		}

		if err := prog.load(in.body); err != nil {
			return err
		}

		if err := prog.load(in.alt); err != nil {
			return err
		}
	}

	return nil
}

func (prog *Program) loadInstr(in *instr) error {
	var (
		exprs   []string
		interps []Interp
	)

	switch in.op {
	case "return", "if", "while", "each":
		exprs = in.args[:1]
	case "for":
		exprs = in.args[1:3]
	case "call":
		if _, ok := prog.units[in.args[0]]; !ok {
			return ErrProgram.Wrap(errors.New("call of undefined unit " + in.args[0]))
		}
	case "prop", "var":
		interps = []Interp{Interp(in.args[0]), Interp(in.args[1])}
	case "rule", "comment", "css-import", "extend", "debug", "warn", "error":
		interps = []Interp{Interp(in.args[0])}
	case "param", "arg", "kwarg":
		return ErrProgram.Wrap(errors.New(in.op + " outside block header"))
	}

	for _, p := range in.params {
		interps = append(interps, p.Default)
	}

	interps = append(interps, in.iargs...)

	for _, a := range in.kwargs {
		interps = append(interps, a.Value)
	}

	for _, s := range exprs {
		if _, err := prog.exprs.compile(s); err != nil {
			return err
		}
	}

	for _, s := range interps {
		if err := prog.exprs.compileInterp(s); err != nil {
			return err
		}
	}

	return nil
}

// String returns the program text.
func (prog *Program) String() string { return prog.text }

// Path returns the canonical path of the entry file.
func (prog *Program) Path() string { return prog.root.path }

// Imports returns the canonical paths of the imported files, sorted.
func (prog *Program) Imports() []string {
	out := make([]string, 0, len(prog.units))
	for _, u := range prog.units {
		out = append(out, u.path)
	}

	slices.Sort(out)

	return out
}

// Stale reports whether any input of the program changed since it was
// generated. Inputs are loaded through their embedded importers and
// compared by fingerprint.
func (prog *Program) Stale(ctx context.Context) (bool, error) {
	units := make([]*unit, 0, len(prog.units)+1)
	units = append(units, prog.root)

	for _, u := range prog.units {
		units = append(units, u)
	}

	for _, u := range units {
		if u.importer == nil || !u.hasPrint {
			continue
		}

		data, err := u.importer.Load(ctx, u.path)
		if err != nil {
			return false, err
		}

		if xxh3.Hash(data) != u.fingerprint {
			return true, nil
		}
	}

	return false, nil
}

// Execute runs the program and returns the static tree, as [Evaluate]
// would for the stylesheet the program was generated from. Only the
// logger and limit options apply.
func (prog *Program) Execute(ctx context.Context, opts ...Option) (*Node, error) {
	x := &executor{
		runtime: newRuntime(ctx, makeOptions(opts...), prog.exprs),
		prog:    prog,
	}
	x.backend = x

	out := NewRoot(prog.root.path)
	fr := x.rootFrame(out, &File{Path: prog.root.path, Importer: prog.root.importer})

	if err := x.block(prog.root.body, fr); err != nil {
		return nil, err
	}

	return out, nil
}

// Run executes the program and returns the flat, extended stylesheet.
func (prog *Program) Run(ctx context.Context, opts ...Option) (*Stylesheet, error) {
	out, err := prog.Execute(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return finish(out)
}

// executor runs program instructions. Closure bodies are []*instr.
type executor struct {
	*runtime

	prog *Program
}

// run implements backend.
func (x *executor) run(body any, fr *frame) error {
	list, _ := body.([]*instr)

	return x.block(list, fr)
}

func (x *executor) block(list []*instr, fr *frame) error {
	for _, in := range list {
		if err := x.ctx.Err(); err != nil {
			return err
		}

		if err := x.exec(in, fr); err != nil {
			return at(err, in.src)
		}

		if fr.returned() {
			return nil
		}
	}

	return nil
}

func (x *executor) inner(list []*instr) func(*frame) error {
	return func(fr *frame) error { return x.block(list, fr) }
}

//nolint:gocyclo,cyclop,funlen
func (x *executor) exec(in *instr, fr *frame) error {
	switch in.op {
	case "rule":
		sel, err := x.text(fr, Interp(in.args[0]))
		if err != nil {
			return err
		}

		child, err := x.rule(fr, sel, in.src)
		if err != nil {
			return err
		}
		defer x.leave(child)

		return x.block(in.body, child)

	case "prop":
		name, err := x.text(fr, Interp(in.args[0]))
		if err != nil {
			return err
		}

		value, err := x.interp(fr, Interp(in.args[1]))
		if err != nil {
			return err
		}

		child := x.prop(fr, name, value, in.src)
		defer x.leave(child)

		return x.block(in.body, child)

	case "var":
		return x.assign(fr, in.args[0], in.flag("global"), in.flag("default"),
			func() (any, error) { return x.interp(fr, Interp(in.args[1])) })

	case "function":
		x.declareFn(fr, in.args[0], in.params, in.body)

	case "mixin":
		x.declareMixin(fr, in.args[0], in.params, in.body)

	case "include":
		args := make([]any, len(in.iargs))

		for i, a := range in.iargs {
			v, err := x.interp(fr, a)
			if err != nil {
				return err
			}

			args[i] = v
		}

		kwargs := make([]namedValue, len(in.kwargs))

		for i, a := range in.kwargs {
			v, err := x.interp(fr, a.Value)
			if err != nil {
				return err
			}

			kwargs[i] = namedValue{name: a.Name, value: v}
		}

		var content *Closure
		if len(in.body) > 0 {
			content = x.contentBlock(fr, in.body)
		}

		return x.include(fr, in.args[0], args, kwargs, content)

	case "content":
		return x.content(fr)

	case "return":
		if fr.ret == nil {
			return ErrStructure.Wrap(errors.New("return outside function"))
		}

		v, err := x.eval(fr, in.args[0])
		if err != nil {
			return err
		}

		fr.ret.value, fr.ret.done = v, true

	case "call":
		u := x.prog.units[in.args[0]]

		child := *fr
		child.file = &File{Path: u.path, Importer: u.importer}

		if u.importer != nil {
			child.importer = u.importer
		}

		return x.block(u.body, &child)

	case "comment":
		text, err := x.text(fr, Interp(in.args[0]))
		if err != nil {
			return err
		}

		x.comment(fr, text, in.src)

	case "css-import":
		text, err := x.text(fr, Interp(in.args[0]))
		if err != nil {
			return err
		}

		x.cssImport(fr, text, in.src)

	case "extend":
		if fr.parent == nil {
			return ErrStructure.Wrap(errors.New("extend outside rule"))
		}

		text, err := x.text(fr, Interp(in.args[0]))
		if err != nil {
			return err
		}

		x.extend(fr, text, in.flag("optional"), in.src)

	case "if":
		ok, err := x.condition(fr, in.args[0])
		if err != nil {
			return err
		}

		if ok {
			return x.scoped(fr, x.inner(in.body))
		}

		return x.scoped(fr, x.inner(in.alt))

	case "each":
		v, err := x.eval(fr, in.args[0])
		if err != nil {
			return err
		}

		return x.each(fr, in.args[1:], v, x.inner(in.body))

	case "for":
		from, err := x.eval(fr, in.args[1])
		if err != nil {
			return err
		}

		to, err := x.eval(fr, in.args[2])
		if err != nil {
			return err
		}

		return x.forRange(fr, in.args[0], from, to, in.args[3] == "through", x.inner(in.body))

	case "while":
		return x.while(fr,
			func() (bool, error) { return x.condition(fr, in.args[0]) },
			x.inner(in.body),
		)

	case "debug", "warn", "error":
		text, err := x.text(fr, Interp(in.args[0]))
		if err != nil {
			return err
		}

		kind, _ := ParseKind(in.op)

		return x.message(kind, text, in.src)

	default:
		return ErrProgram.Wrap(errors.New("unknown instruction " + in.op))
	}

	return nil
}
