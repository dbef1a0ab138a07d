// Package selector models CSS selectors as used by the stylesheet compiler:
// comma-separated lists of complex selectors, each a chain of compound
// selectors joined by combinators.
//
// Besides parsing and printing, the package resolves parent references
// ("&") against an enclosing selector and provides the compound-level
// operations the extender is built on.
package selector

import (
	"slices"
	"strings"

	"github.com/mitchellh/copystructure"
)

// Combinator joins two compound selectors in a complex selector.
type Combinator int

const (
	Descendant Combinator = iota // whitespace
	Child                        // >
	Adjacent                     // +
	Sibling                      // ~
)

// String returns the combinator's source text. [Descendant] is empty.
func (c Combinator) String() string {
	switch c {
	case Child:
		return ">"
	case Adjacent:
		return "+"
	case Sibling:
		return "~"
	default:
		return ""
	}
}

// Kind identifies the flavor of a simple selector.
type Kind int

const (
	Universal   Kind = iota // *
	Type                    // div
	Class                   // .name
	ID                      // #name
	Attribute               // [attr=value]
	Pseudo                  // :hover, ::before, :not(...)
	Placeholder             // %name
	Parent                  // &, &-suffix
)

// Simple is a single simple selector.
//
// For [Pseudo], Name keeps its leading colons and Arg holds the raw text
// between the parentheses when HasArg is set. For [Attribute], Arg holds the
// raw text between the brackets. For [Parent], Suffix is the identifier text
// glued onto the resolved parent.
type Simple struct {
	Kind   Kind
	Name   string
	Arg    string
	Suffix string
	HasArg bool
}

// String returns the simple selector's source text.
func (s Simple) String() string {
	switch s.Kind {
	case Universal:
		return "*"
	case Type:
		return s.Name
	case Class:
		return "." + s.Name
	case ID:
		return "#" + s.Name
	case Attribute:
		return "[" + s.Arg + "]"
	case Pseudo:
		if s.HasArg {
			return s.Name + "(" + s.Arg + ")"
		}

		return s.Name
	case Placeholder:
		return "%" + s.Name
	case Parent:
		return "&" + s.Suffix
	default:
		return ""
	}
}

// isPseudoElement reports whether s is a pseudo-element, which must stay
// last in its compound.
func (s Simple) isPseudoElement() bool {
	if s.Kind != Pseudo {
		return false
	}

	switch s.Name {
	case "::before", "::after", "::first-line", "::first-letter",
		":before", ":after", ":first-line", ":first-letter":
		return true
	}

	return strings.HasPrefix(s.Name, "::")
}

// Compound is a sequence of simple selectors with no combinator between them.
type Compound struct {
	Simples []Simple
}

// String returns the compound's source text.
func (c Compound) String() string {
	var b strings.Builder

	for _, s := range c.Simples {
		b.WriteString(s.String())
	}

	return b.String()
}

// HasParent reports whether c contains a parent reference.
func (c Compound) HasParent() bool {
	return slices.ContainsFunc(c.Simples, func(s Simple) bool {
		return s.Kind == Parent
	})
}

// Contains reports whether every simple selector of other also appears in c,
// so that any element matched by c is matched by other.
func (c Compound) Contains(other Compound) bool {
	if len(other.Simples) == 0 {
		return false
	}

	for _, o := range other.Simples {
		if o.Kind == Universal {
			continue
		}

		if !slices.Contains(c.Simples, o) {
			return false
		}
	}

	return true
}

// Without returns c with every simple selector that appears in other
// removed.
func (c Compound) Without(other Compound) Compound {
	out := Compound{Simples: make([]Simple, 0, len(c.Simples))}

	for _, s := range c.Simples {
		if !slices.Contains(other.Simples, s) {
			out.Simples = append(out.Simples, s)
		}
	}

	return out
}

// Unify returns a compound matching only elements matched by both a and b.
// It fails when a and b name different element types or different IDs.
//
// The result starts with the element type (if any), followed by the
// remaining simple selectors of a and then those of b not already present.
// Pseudo-elements are moved to the end.
func Unify(a, b Compound) (Compound, bool) {
	var (
		elem   *Simple
		ids    []string
		rest   []Simple
		pseudo []Simple
	)

	for _, s := range slices.Concat(a.Simples, b.Simples) {
		switch {
		case s.Kind == Type:
			if elem != nil && elem.Kind == Type && elem.Name != s.Name {
				return Compound{}, false
			}

			elem = &s

		case s.Kind == Universal:
			if elem == nil {
				elem = &s
			}

		case s.Kind == ID:
			if len(ids) > 0 && ids[0] != s.Name {
				return Compound{}, false
			}

			if len(ids) == 0 {
				ids = append(ids, s.Name)
				rest = append(rest, s)
			}

		case s.isPseudoElement():
			if !slices.Contains(pseudo, s) {
				pseudo = append(pseudo, s)
			}

		default:
			if !slices.Contains(rest, s) {
				rest = append(rest, s)
			}
		}
	}

	out := Compound{Simples: make([]Simple, 0, len(rest)+len(pseudo)+1)}

	// A lone universal selector is dropped when anything else remains.
	if elem != nil && (elem.Kind == Type || len(rest)+len(pseudo) == 0) {
		out.Simples = append(out.Simples, *elem)
	}

	out.Simples = append(out.Simples, rest...)
	out.Simples = append(out.Simples, pseudo...)

	return out, true
}

// Step is one compound selector together with the combinator that joins it
// to the previous step. The first step of a complex selector normally uses
// [Descendant]; any other combinator there is a leading combinator.
type Step struct {
	Combinator Combinator
	Compound   Compound
}

// Complex is a chain of compound selectors.
type Complex struct {
	Steps []Step
}

// String returns the complex selector's source text.
func (c Complex) String() string {
	var b strings.Builder

	for i, step := range c.Steps {
		switch {
		case step.Combinator != Descendant:
			if i > 0 {
				b.WriteByte(' ')
			}

			b.WriteString(step.Combinator.String())
			b.WriteByte(' ')

		case i > 0:
			b.WriteByte(' ')
		}

		b.WriteString(step.Compound.String())
	}

	return b.String()
}

// HasPlaceholder reports whether any step contains a placeholder selector.
func (c Complex) HasPlaceholder() bool {
	for _, step := range c.Steps {
		for _, s := range step.Compound.Simples {
			if s.Kind == Placeholder {
				return true
			}
		}
	}

	return false
}

// HasParent reports whether any step contains a parent reference.
func (c Complex) HasParent() bool {
	return slices.ContainsFunc(c.Steps, func(s Step) bool {
		return s.Compound.HasParent()
	})
}

// List is a comma-separated list of complex selectors.
type List struct {
	Complexes []Complex
}

// String returns the list's source text, complex selectors joined by ", ".
func (l *List) String() string {
	if l == nil {
		return ""
	}

	parts := make([]string, len(l.Complexes))
	for i, c := range l.Complexes {
		parts[i] = c.String()
	}

	return strings.Join(parts, ", ")
}

// Len returns the number of complex selectors in l.
func (l *List) Len() int {
	if l == nil {
		return 0
	}

	return len(l.Complexes)
}

// Clone returns a deep copy of l. Modifying the copy never affects l.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}

	return copystructure.Must(copystructure.Copy(l)).(*List)
}

// Visible returns the complex selectors of l that contain no placeholder.
func (l *List) Visible() *List {
	out := &List{}

	for _, c := range l.Complexes {
		if !c.HasPlaceholder() {
			out.Complexes = append(out.Complexes, c)
		}
	}

	return out
}
