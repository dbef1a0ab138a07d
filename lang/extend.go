package lang

import (
	"log/slog"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/ardnew/sassy/lang/selector"
)

// Extend applies the extensions of s to its rules. Each rule whose
// selector contains an extension's target gains the selectors obtained by
// substituting the extender for the target. Extensions apply transitively:
// a selector produced by one extension is itself subject to the others.
//
// Placeholder selectors are removed afterwards, along with rules left with
// no selector. Every non-optional extension that matched no rule is
// reported, together in one error.
func Extend(s *Stylesheet) error {
	blocks := s.Blocks[:0]

	for _, b := range s.Blocks {
		if b.Kind == KindRule {
			if len(s.Extensions) > 0 {
				b.Selector = extendList(b.Selector, s.Extensions)
			}

			if b.Selector = b.Selector.Visible(); b.Selector.Len() == 0 {
				continue
			}
		}

		blocks = append(blocks, b)
	}

	s.Blocks = blocks

	var result *multierror.Error

	for _, e := range s.Extensions {
		if !e.matched && !e.Optional {
			result = multierror.Append(result, ErrUnsatisfiedExtend.With(
				slog.String("target", e.Target.String()),
				slog.String("extender", e.Extender.String()),
			).At(e.Source))
		}
	}

	return result.ErrorOrNil()
}

// step is a selector step along with the extensions already substituted
// at it. A step copied from an extender inherits the set of the step it
// replaced, so no extension is applied twice at the same position.
type step struct {
	selector.Step
	used []bool
}

// pending is a complex selector waiting to be extended.
type pending []step

func newPending(c selector.Complex, n int) pending {
	p := make(pending, len(c.Steps))
	for i, s := range c.Steps {
		p[i] = step{Step: s, used: make([]bool, n)}
	}

	return p
}

func tagSteps(steps []selector.Step, used []bool) pending {
	p := make(pending, len(steps))
	for i, s := range steps {
		p[i] = step{Step: s, used: used}
	}

	return p
}

func (p pending) complex() selector.Complex {
	steps := make([]selector.Step, len(p))
	for i, s := range p {
		steps[i] = s.Step
	}

	return selector.Complex{Steps: steps}
}

// extendList returns l followed by every distinct selector reachable from
// it through exts. Each step receives a given extension at most once,
// which bounds the search and still substitutes every occurrence of a
// target.
func extendList(l *selector.List, exts []*Extension) *selector.List {
	var (
		out   = &selector.List{}
		seen  = make(map[string]bool)
		queue []pending
	)

	add := func(p pending) {
		c := p.complex()

		key := c.String()
		if seen[key] {
			return
		}

		seen[key] = true
		out.Complexes = append(out.Complexes, c)
		queue = append(queue, p)
	}

	for _, c := range l.Complexes {
		add(newPending(c, len(exts)))
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		for i, e := range exts {
			results, matched := extendComplex(p, i, e)
			if matched {
				e.matched = true
			}

			for _, r := range results {
				add(r)
			}
		}
	}

	return out
}

// extendComplex substitutes the extender of e, the extension at index ei,
// for its target in each step of p containing the target. It reports
// whether any step contained the target, even when no selector could be
// produced.
func extendComplex(p pending, ei int, e *Extension) ([]pending, bool) {
	var (
		out     []pending
		matched bool
	)

	for i, s := range p {
		if !s.Compound.Contains(e.Target) {
			continue
		}

		matched = true

		if s.used[ei] {
			continue
		}

		used := slices.Clone(s.used)
		used[ei] = true

		rest := s.Compound.Without(e.Target)

		for _, x := range e.Extender.Complexes {
			if len(x.Steps) == 0 {
				continue
			}

			unified, ok := selector.Unify(rest, x.Steps[len(x.Steps)-1].Compound)
			if !ok {
				continue
			}

			out = append(out, weave(p, i, x, unified, used)...)
		}
	}

	return out, matched
}

// weave joins the steps of p before index i with the steps of x before its
// last, followed by unified and the steps of p after i. Steps taken from x
// are tagged with used.
//
// Descendant prefixes may interleave in either order. A prefix joined by
// any other combinator must stay adjacent to unified, and two such
// prefixes are only compatible when they are identical.
func weave(p pending, i int, x selector.Complex, unified selector.Compound, used []bool) []pending {
	var (
		last   = len(x.Steps) - 1
		cPre   = p[:i]
		xPre   = tagSteps(x.Steps[:last], used)
		cComb  = p[i].Combinator
		xComb  = x.Steps[last].Combinator
		suffix = p[i+1:]
	)

	comb := cComb
	if comb == selector.Descendant {
		comb = xComb
	}

	var prefixes []pending

	switch {
	case cComb != selector.Descendant && xComb != selector.Descendant && cComb != xComb:
		return nil
	case len(xPre) == 0 || sameSteps(cPre, xPre):
		prefixes = []pending{cPre}
	case len(cPre) == 0:
		prefixes = []pending{xPre}
	case cComb != selector.Descendant && xComb != selector.Descendant:
		return nil
	case cComb != selector.Descendant:
		prefixes = []pending{slices.Concat(xPre, cPre)}
	case xComb != selector.Descendant:
		prefixes = []pending{slices.Concat(cPre, xPre)}
	default:
		prefixes = []pending{slices.Concat(cPre, xPre), slices.Concat(xPre, cPre)}
	}

	out := make([]pending, 0, len(prefixes))

	for _, pre := range prefixes {
		steps := make(pending, 0, len(pre)+1+len(suffix))
		steps = append(steps, copySteps(pre)...)
		steps = append(steps, step{
			Step: selector.Step{
				Combinator: comb,
				Compound:   selector.Compound{Simples: slices.Clone(unified.Simples)},
			},
			used: used,
		})
		steps = append(steps, copySteps(suffix)...)
		out = append(out, steps)
	}

	return out
}

func sameSteps(a, b pending) bool {
	return a.complex().String() == b.complex().String()
}

// copySteps copies the compounds of steps. The used sets are shared since
// they are never modified after creation.
func copySteps(steps pending) pending {
	out := make(pending, len(steps))

	for i, s := range steps {
		out[i] = step{
			Step: selector.Step{
				Combinator: s.Combinator,
				Compound:   selector.Compound{Simples: slices.Clone(s.Compound.Simples)},
			},
			used: s.used,
		}
	}

	return out
}
