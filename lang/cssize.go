package lang

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/ardnew/sassy/lang/selector"
)

// Decl is a property declaration, or a comment, inside a rule.
type Decl struct {
	Name    string
	Value   string
	Comment bool
	Source  Source
}

// Block is one top-level construct of a flat stylesheet.
//
//	Rule      Selector, Decls
//	Comment   Text
//	CSSImport Text
type Block struct {
	Kind     Kind
	Selector *selector.List
	Decls    []Decl
	Text     string
	Source   Source
}

// Extension is one extend directive: the rules matching Target also gain
// the selector Extender.
type Extension struct {
	Extender *selector.List
	Target   selector.Compound
	Optional bool
	Source   Source

	matched bool
}

// Stylesheet is a flat list of output blocks. Rules are no longer nested:
// each rule carries its full selector. CSS imports come first.
type Stylesheet struct {
	Blocks     []*Block
	Extensions []*Extension
}

// Rules returns the rule blocks of s.
func (s *Stylesheet) Rules() []*Block {
	var out []*Block

	for _, b := range s.Blocks {
		if b.Kind == KindRule {
			out = append(out, b)
		}
	}

	return out
}

type flattener struct {
	sheet   *Stylesheet
	imports []*Block
}

// Flatten turns a static tree produced by [Evaluate] into a flat
// stylesheet. Nested rules become siblings following their parent, nested
// properties are joined with "-", and rules without declarations are
// dropped. Extend directives are collected for [Extend].
//
// Selectors are copied, so the flat stylesheet shares no state with root.
func Flatten(root *Node) (*Stylesheet, error) {
	if root == nil || root.Kind != KindRoot {
		return nil, ErrInvalidNode.Wrap(errors.New("expected a root node"))
	}

	f := flattener{sheet: &Stylesheet{}}

	for _, n := range root.Children {
		if err := f.top(n); err != nil {
			return nil, at(err, n.Source)
		}
	}

	blocks := slices.DeleteFunc(f.sheet.Blocks, func(b *Block) bool {
		return b.Kind == KindRule && len(b.Decls) == 0
	})
	f.sheet.Blocks = append(f.imports, blocks...)

	return f.sheet, nil
}

func (f *flattener) top(n *Node) error {
	switch n.Kind {
	case KindRule:
		return f.rule(n)

	case KindComment:
		f.sheet.Blocks = append(f.sheet.Blocks, &Block{
			Kind:   KindComment,
			Text:   string(n.Value),
			Source: n.Source,
		})

	case KindCSSImport:
		f.cssImport(n)

	case KindProp, KindExtend:
		return ErrStructure.Wrap(errors.New(n.Kind.String() + " outside rule"))

	default:
		return ErrInvalidNode.With(slog.String("kind", n.Kind.String()))
	}

	return nil
}

func (f *flattener) cssImport(n *Node) {
	f.imports = append(f.imports, &Block{
		Kind:   KindCSSImport,
		Text:   string(n.Value),
		Source: n.Source,
	})
}

// rule appends the block for n before the blocks of any nested rules.
func (f *flattener) rule(n *Node) error {
	if n.Selector == nil {
		return ErrInvalidNode.Wrap(errors.New("rule has no resolved selector"))
	}

	b := &Block{Kind: KindRule, Selector: n.Selector.Clone(), Source: n.Source}
	f.sheet.Blocks = append(f.sheet.Blocks, b)

	for _, c := range n.Children {
		var err error

		switch c.Kind {
		case KindProp:
			err = f.prop(b, "", c)
		case KindComment:
			b.Decls = append(b.Decls, Decl{Value: string(c.Value), Comment: true, Source: c.Source})
		case KindRule:
			err = f.rule(c)
		case KindExtend:
			err = f.extend(c)
		case KindCSSImport:
			f.cssImport(c)
		default:
			err = ErrInvalidNode.With(slog.String("kind", c.Kind.String()))
		}

		if err != nil {
			return at(err, c.Source)
		}
	}

	return nil
}

func (f *flattener) prop(b *Block, prefix string, n *Node) error {
	name := prefix + strings.TrimSpace(string(n.Name))

	if n.Value != "" {
		b.Decls = append(b.Decls, Decl{Name: name, Value: string(n.Value), Source: n.Source})
	}

	for _, c := range n.Children {
		switch c.Kind {
		case KindProp:
			if err := f.prop(b, name+"-", c); err != nil {
				return err
			}
		case KindComment:
			b.Decls = append(b.Decls, Decl{Value: string(c.Value), Comment: true, Source: c.Source})
		default:
			return ErrInvalidNode.With(slog.String("kind", c.Kind.String())).At(c.Source)
		}
	}

	return nil
}

func (f *flattener) extend(n *Node) error {
	if n.Selector == nil {
		return ErrStructure.Wrap(errors.New("extend outside rule"))
	}

	target, err := selector.ParseCompound(strings.TrimSpace(string(n.Name)))
	if err != nil {
		return ErrSelector.Wrap(err)
	}

	f.sheet.Extensions = append(f.sheet.Extensions, &Extension{
		Extender: n.Selector.Clone(),
		Target:   target,
		Optional: n.Optional,
		Source:   n.Source,
	})

	return nil
}
