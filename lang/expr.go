package lang

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// compiled is an expression compiled once and run many times.
type compiled struct {
	source  string
	program *vm.Program
	refs    []string
}

// exprCache memoizes compiled expressions by source text. It is shared by
// every run of a generated program, so it is safe for concurrent use.
type exprCache struct {
	mu    sync.Mutex
	progs map[string]*compiled
}

func newExprCache() *exprCache {
	return &exprCache{progs: make(map[string]*compiled)}
}

// compile returns the compiled form of source.
func (c *exprCache) compile(source string) (*compiled, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.progs[source]; ok {
		return p, nil
	}

	if strings.TrimSpace(source) == "" {
		return nil, ErrExprCompile.Wrap(errors.New("empty expression"))
	}

	program, err := expr.Compile(
		source,
		expr.DisableIfOperator(),
		expr.Patch(sassPatcher{}),
		expr.Patch(lazyPatcher{}),
	)
	if err != nil {
		return nil, ErrExprCompile.Wrap(err).With(slog.String("source", source))
	}

	p := &compiled{
		source:  source,
		program: program,
		refs:    collectRefs(program.Node()),
	}
	c.progs[source] = p

	return p, nil
}

// compileInterp compiles every expression segment of s.
func (c *exprCache) compileInterp(s Interp) error {
	segs, err := s.segments()
	if err != nil {
		return err
	}

	for _, seg := range segs {
		if seg.isExpr {
			if _, err := c.compile(seg.text); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolver supplies the values an expression reads at run time.
type resolver interface {
	// lookup returns the value of variable name (with its "$" prefix).
	lookup(name string) (any, error)

	// call invokes the user function or builtin name.
	call(name string, args []any) (any, error)
}

// run evaluates p. Variables are looked up as evaluation reaches them;
// any other free identifier evaluates to its own name.
func (p *compiled) run(r resolver) (any, error) {
	env := make(map[string]any, len(p.refs)+3)

	for _, ref := range p.refs {
		if ref == "null" {
			env[ref] = nil
		} else {
			env[ref] = ref
		}
	}

	env[callName] = r.call
	env[varName] = r.lookup
	env[truthyName] = Truthy

	out, err := expr.Run(p.program, env)
	if err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			return nil, ee
		}

		return nil, ErrExprEvaluate.Wrap(err).With(slog.String("source", p.source))
	}

	return out, nil
}
