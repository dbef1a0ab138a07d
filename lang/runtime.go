package lang

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ardnew/sassy/lang/selector"
)

// frame is the context threaded through one block of a compile: the scope
// bindings resolve in, the node receiving output, and the selector that
// nested rules resolve against. A nested block gets a copy, so changes
// never leak into sibling blocks.
type frame struct {
	scope    ScopeID
	target   *Node
	parent   *selector.List
	content  *Closure
	file     *File
	importer Importer
	ret      *returnSlot
}

// returnSlot receives the value of a return statement.
type returnSlot struct {
	value any
	done  bool
}

func (f *frame) returned() bool { return f.ret != nil && f.ret.done }

// base returns the canonical path of the file being compiled, if any.
func (f *frame) base() string {
	if f.file == nil {
		return ""
	}

	return f.file.Path
}

// backend runs the body of a closure. Each backend stores bodies in its
// own representation.
type backend interface {
	run(body any, fr *frame) error
}

// runtime holds the state of one compile shared by both backends.
type runtime struct {
	ctx     context.Context
	opts    *options
	env     *Env
	exprs   *exprCache
	backend backend
	depth   int

	// found memoizes import resolution by name and importing file.
	found map[string]*File
}

func newRuntime(ctx context.Context, opts *options, exprs *exprCache) *runtime {
	if exprs == nil {
		exprs = newExprCache()
	}

	return &runtime{
		ctx:   ctx,
		opts:  opts,
		env:   NewEnv(),
		exprs: exprs,
		found: make(map[string]*File),
	}
}

// rootFrame returns the frame for the top level of a compile writing to
// out.
func (rt *runtime) rootFrame(out *Node, file *File) *frame {
	fr := &frame{scope: RootScope, target: out, file: file, importer: rt.opts.importer}
	if file != nil && file.Importer != nil {
		fr.importer = file.Importer
	}

	return fr
}

// nested returns a copy of fr with a new scope pushed.
func (rt *runtime) nested(fr *frame) *frame {
	child := *fr
	child.scope = rt.env.Push(fr.scope)

	return &child
}

// leave discards the scope of a frame returned by nested.
func (rt *runtime) leave(fr *frame) { rt.env.Pop(fr.scope) }

// scoped runs body in a nested frame.
func (rt *runtime) scoped(fr *frame, body func(*frame) error) error {
	child := rt.nested(fr)
	defer rt.leave(child)

	return body(child)
}

// scopeResolver resolves expression references against a frame.
type scopeResolver struct {
	rt *runtime
	fr *frame
}

func (r scopeResolver) lookup(name string) (any, error) {
	slot := r.rt.env.LookupVar(r.fr.scope, name)
	if slot == nil {
		return nil, ErrUnresolved.Wrap(errors.New("undefined variable " + name))
	}

	if _, ok := slot.Value.(unset); ok {
		return nil, ErrUnresolved.Wrap(errors.New("variable " + name + " used before assignment"))
	}

	return slot.Value, nil
}

func (r scopeResolver) call(name string, args []any) (any, error) {
	return r.rt.callFunction(r.fr, name, args)
}

// eval evaluates an expression in fr.
func (rt *runtime) eval(fr *frame, source string) (any, error) {
	p, err := rt.exprs.compile(source)
	if err != nil {
		return nil, err
	}

	return p.run(scopeResolver{rt: rt, fr: fr})
}

// interp evaluates interpolated text. A single #{} segment keeps the type
// of its value and purely literal text is typed with [ParseLiteral].
// Otherwise the segments are concatenated as CSS text.
func (rt *runtime) interp(fr *frame, s Interp) (any, error) {
	if s.IsLiteral() {
		return ParseLiteral(string(s)), nil
	}

	segs, err := s.segments()
	if err != nil {
		return nil, err
	}

	if len(segs) == 1 && segs[0].isExpr {
		return rt.eval(fr, segs[0].text)
	}

	var b strings.Builder

	for _, seg := range segs {
		if !seg.isExpr {
			b.WriteString(seg.text)
			continue
		}

		v, err := rt.eval(fr, seg.text)
		if err != nil {
			return nil, err
		}

		b.WriteString(ToCSS(v))
	}

	return b.String(), nil
}

// text evaluates interpolated text to a string.
func (rt *runtime) text(fr *frame, s Interp) (string, error) {
	if s.IsLiteral() {
		return string(s), nil
	}

	v, err := rt.interp(fr, s)
	if err != nil {
		return "", err
	}

	return ToCSS(v), nil
}

// condition evaluates an expression for its truth value.
func (rt *runtime) condition(fr *frame, source string) (bool, error) {
	v, err := rt.eval(fr, source)
	if err != nil {
		return false, err
	}

	return Truthy(v), nil
}

// enter guards the call depth. The returned function must be called when
// the call completes.
func (rt *runtime) enter(kind, name string) (func(), error) {
	if rt.depth >= rt.opts.maxDepth {
		return nil, ErrArgument.Wrap(ErrMaxDepthExceeded).
			With(slog.String(kind, name), slog.Int("max_depth", rt.opts.maxDepth))
	}

	rt.depth++

	return func() { rt.depth-- }, nil
}

// callFunction invokes a user function visible from fr, or a builtin.
func (rt *runtime) callFunction(fr *frame, name string, args []any) (any, error) {
	fn := rt.env.LookupFn(fr.scope, name)
	if fn == nil || fn.Body == nil {
		out, ok, err := callBuiltin(rt.env, name, args)
		if !ok {
			return nil, ErrUnresolved.Wrap(errors.New("undefined function " + name))
		}

		return out, err
	}

	exit, err := rt.enter("function", name)
	if err != nil {
		return nil, err
	}
	defer exit()

	child := &frame{
		scope:    rt.env.Push(fn.Scope),
		target:   &Node{Kind: KindRoot},
		parent:   fr.parent,
		file:     fr.file,
		importer: fr.importer,
		ret:      &returnSlot{},
	}
	defer rt.leave(child)

	if err := rt.bind(child, fn, args, nil); err != nil {
		return nil, err
	}

	if err := rt.backend.run(fn.Body, child); err != nil {
		return nil, err
	}

	if !child.ret.done {
		return nil, ErrNoReturn.With(slog.String("function", name))
	}

	rt.opts.logger.TraceContext(rt.ctx, "function returned",
		slog.String("function", name),
		slog.String("type", TypeOf(child.ret.value)),
	)

	return child.ret.value, nil
}

// bind declares the parameters of c in the scope of fr. Positional
// arguments bind first, then named ones. Defaults are evaluated in fr, in
// parameter order, only for parameters the caller omitted.
func (rt *runtime) bind(fr *frame, c *Closure, args []any, kwargs []namedValue) error {
	if len(args) > len(c.Params) {
		return ErrArgument.Wrap(fmt.Errorf("%s takes %d arguments but %d were passed",
			c.Name, len(c.Params), len(args)))
	}

	named := make(map[string]any, len(kwargs))

	for _, kw := range kwargs {
		i := slices.IndexFunc(c.Params, func(p Param) bool {
			return normName(p.Name) == normName(kw.name)
		})

		switch {
		case i < 0:
			return ErrArgument.Wrap(fmt.Errorf("%s has no parameter named $%s",
				c.Name, normName(kw.name)))
		case i < len(args):
			return ErrArgument.Wrap(fmt.Errorf("%s: $%s was passed both by position and by name",
				c.Name, normName(kw.name)))
		}

		named[normName(kw.name)] = kw.value
	}

	for i, p := range c.Params {
		var (
			v   any
			err error
		)

		switch nv, isNamed := named[normName(p.Name)]; {
		case i < len(args):
			v = args[i]
		case isNamed:
			v = nv
		case p.HasDefault:
			if v, err = rt.interp(fr, p.Default); err != nil {
				return err
			}
		default:
			return ErrArgument.Wrap(fmt.Errorf("%s: missing argument $%s",
				c.Name, normName(p.Name)))
		}

		rt.env.DeclareVar(fr.scope, p.Name).Value = v
	}

	return nil
}

// namedValue is an evaluated keyword argument.
type namedValue struct {
	name  string
	value any
}

// include expands the mixin name at fr. content is the caller's content
// block, or nil.
func (rt *runtime) include(
	fr *frame,
	name string,
	args []any,
	kwargs []namedValue,
	content *Closure,
) error {
	mixin := rt.env.LookupMixin(fr.scope, name)
	if mixin == nil || mixin.Body == nil {
		return ErrUnresolved.Wrap(errors.New("undefined mixin " + name))
	}

	exit, err := rt.enter("mixin", name)
	if err != nil {
		return err
	}
	defer exit()

	child := &frame{
		scope:    rt.env.Push(mixin.Scope),
		target:   fr.target,
		parent:   fr.parent,
		content:  content,
		file:     fr.file,
		importer: fr.importer,
	}
	defer rt.leave(child)

	if err := rt.bind(child, mixin, args, kwargs); err != nil {
		return err
	}

	return rt.backend.run(mixin.Body, child)
}

// contentBlock captures body as the content block of an include at fr.
func (rt *runtime) contentBlock(fr *frame, body any) *Closure {
	return &Closure{Name: "@content", Body: body, Scope: fr.scope, Content: fr.content}
}

// content expands the content block passed to the enclosing mixin. The
// block sees the bindings of the include site.
func (rt *runtime) content(fr *frame) error {
	c := fr.content
	if c == nil {
		return nil
	}

	child := &frame{
		scope:    rt.env.Push(c.Scope),
		target:   fr.target,
		parent:   fr.parent,
		content:  c.Content,
		file:     fr.file,
		importer: fr.importer,
	}
	defer rt.leave(child)

	return rt.backend.run(c.Body, child)
}

// declareFn binds a function at fr.
func (rt *runtime) declareFn(fr *frame, name string, params []Param, body any) {
	c := rt.env.DeclareFn(fr.scope, name)
	c.Params, c.Body = params, body
}

// declareMixin binds a mixin at fr.
func (rt *runtime) declareMixin(fr *frame, name string, params []Param, body any) {
	c := rt.env.DeclareMixin(fr.scope, name)
	c.Params, c.Body = params, body
}

// assign performs a variable assignment. A guarded assignment evaluates
// value only if it takes effect.
func (rt *runtime) assign(
	fr *frame,
	name string,
	global, guarded bool,
	value func() (any, error),
) error {
	if guarded {
		_, err := rt.env.AssignGuarded(fr.scope, name, global, value)

		return err
	}

	v, err := value()
	if err != nil {
		return err
	}

	rt.env.Assign(fr.scope, name, v, global)

	return nil
}

// rule appends a rule for the selector text to the target of fr and
// returns the frame for its body. The selector is resolved against the
// enclosing selector. The caller must leave the returned frame.
func (rt *runtime) rule(fr *frame, text string, src Source) (*frame, error) {
	parsed, err := selector.Parse(strings.TrimSpace(text))
	if err != nil {
		return nil, ErrSelector.Wrap(err).At(src)
	}

	resolved, err := selector.ResolveParentRefs(parsed, fr.parent)
	if err != nil {
		return nil, ErrSelector.Wrap(err).At(src)
	}

	node := &Node{Kind: KindRule, Name: Interp(text), Selector: resolved, Source: src}
	fr.target.Append(node)

	child := rt.nested(fr)
	child.target, child.parent = node, resolved

	return child, nil
}

// prop appends a property and returns the frame for its nested
// properties. The caller must leave the returned frame.
func (rt *runtime) prop(fr *frame, name string, value any, src Source) *frame {
	node := &Node{Kind: KindProp, Name: Interp(name), Value: Interp(ToCSS(value)), Source: src}
	fr.target.Append(node)

	child := rt.nested(fr)
	child.target = node

	return child
}

func (rt *runtime) comment(fr *frame, text string, src Source) {
	fr.target.Append(&Node{Kind: KindComment, Value: Interp(text), Source: src})
}

func (rt *runtime) cssImport(fr *frame, text string, src Source) {
	fr.target.Append(&Node{Kind: KindCSSImport, Value: Interp(text), Source: src})
}

// extend records an extend directive. The extender is the selector of the
// enclosing rule.
func (rt *runtime) extend(fr *frame, text string, optional bool, src Source) {
	fr.target.Append(&Node{
		Kind:     KindExtend,
		Name:     Interp(strings.TrimSpace(text)),
		Selector: fr.parent,
		Optional: optional,
		Source:   src,
	})
}

// message handles debug, warn and error statements.
func (rt *runtime) message(kind Kind, text string, src Source) error {
	attrs := []slog.Attr{
		slog.String("file", src.File),
		slog.Int("line", src.Line),
	}

	switch kind {
	case KindDebug:
		rt.opts.logger.DebugContext(rt.ctx, text, attrs...)
	case KindWarn:
		rt.opts.logger.WarnContext(rt.ctx, text, attrs...)
	case KindError:
		return ErrUser.Wrap(errors.New(text)).At(src)
	}

	return nil
}

// tick counts one loop iteration against the limit.
func (rt *runtime) tick(n *int) error {
	if *n++; *n > rt.opts.maxIterations {
		return ErrMaxIterations.With(slog.Int("max_iterations", rt.opts.maxIterations))
	}

	return nil
}

// each runs body once per element of value with vars bound. With several
// vars, each element is destructured; a map iterates as key/value pairs
// in key order.
func (rt *runtime) each(
	fr *frame,
	vars []string,
	value any,
	body func(*frame) error,
) error {
	items := toList(value)
	if m, ok := value.(map[string]any); ok {
		items = mapPairs(m)
	}

	var n int

	for _, item := range items {
		if err := rt.tick(&n); err != nil {
			return err
		}

		child := rt.nested(fr)

		if len(vars) == 1 {
			rt.env.DeclareVar(child.scope, vars[0]).Value = item
		} else {
			parts := toList(item)
			for i, v := range vars {
				var x any
				if i < len(parts) {
					x = parts[i]
				}

				rt.env.DeclareVar(child.scope, v).Value = x
			}
		}

		err := body(child)
		rt.leave(child)

		if err != nil || fr.returned() {
			return err
		}
	}

	return nil
}

// forRange runs body for each integer from from to to. The range counts
// down when from exceeds to; to itself is included only if inclusive.
func (rt *runtime) forRange(
	fr *frame,
	name string,
	from, to any,
	inclusive bool,
	body func(*frame) error,
) error {
	start, ok := toInt(from)
	if !ok {
		return ErrArgument.Wrap(errors.New("for: start must be a number, got " + TypeOf(from)))
	}

	end, ok := toInt(to)
	if !ok {
		return ErrArgument.Wrap(errors.New("for: end must be a number, got " + TypeOf(to)))
	}

	step := 1
	if start > end {
		step = -1
	}

	if inclusive {
		end += step
	}

	var n int

	for i := start; i != end; i += step {
		if err := rt.tick(&n); err != nil {
			return err
		}

		child := rt.nested(fr)
		rt.env.DeclareVar(child.scope, name).Value = i

		err := body(child)
		rt.leave(child)

		if err != nil || fr.returned() {
			return err
		}
	}

	return nil
}

// while runs body as long as cond holds.
func (rt *runtime) while(
	fr *frame,
	cond func() (bool, error),
	body func(*frame) error,
) error {
	var n int

	for {
		ok, err := cond()
		if err != nil || !ok {
			return err
		}

		if err := rt.tick(&n); err != nil {
			return err
		}

		if err := rt.scoped(fr, body); err != nil || fr.returned() {
			return err
		}
	}
}

// isCSSImport reports whether an import name refers to plain CSS, which is
// passed through instead of being compiled.
func isCSSImport(name string) bool {
	return strings.HasSuffix(name, ".css") ||
		strings.HasPrefix(name, "http://") ||
		strings.HasPrefix(name, "https://") ||
		strings.HasPrefix(name, "url(") ||
		strings.ContainsAny(strings.TrimSpace(name), " \t")
}

// cssImportText returns the text of the @import rule for a CSS import.
func cssImportText(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "url(") {
		return name
	}

	target, media, _ := strings.Cut(name, " ")
	out := "url(" + target + ")"

	if media = strings.TrimSpace(media); media != "" {
		out += " " + media
	}

	return out
}

// resolveImport finds the file for an import name: first through the
// importer of the importing file, then through each load path.
func (rt *runtime) resolveImport(fr *frame, name string, src Source) (*File, error) {
	key := fr.base() + "\x00" + name
	if f, ok := rt.found[key]; ok {
		return f, nil
	}

	tried := make([]Importer, 0, len(rt.opts.loadPaths)+1)
	if fr.importer != nil {
		tried = append(tried, fr.importer)
	}

	for _, imp := range rt.opts.importers() {
		if !slices.Contains(tried, imp) {
			tried = append(tried, imp)
		}
	}

	for _, imp := range tried {
		f, err := imp.Find(rt.ctx, name, fr.base())
		if err != nil {
			return nil, at(err, src)
		}

		if f != nil {
			rt.opts.logger.TraceContext(rt.ctx, "import resolved",
				slog.String("name", name),
				slog.String("path", f.Path),
				slog.String("importer", imp.Kind()),
				slog.String("size", humanize.Bytes(uint64(len(f.Data)))),
			)

			rt.found[key] = f

			return f, nil
		}
	}

	return nil, ErrImportNotFound.With(slog.String("name", name)).At(src)
}
