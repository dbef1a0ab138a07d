package lang

import (
	"errors"
	"log/slog"
)

// CheckNesting verifies that every node of the tree rooted at root appears
// only under ancestors its kind permits. It reports the first violation
// found in document order.
//
// The check is purely structural. It runs once on the dynamic tree and
// again on the evaluated tree, where it catches nodes placed at an illegal
// level by an included mixin or content block.
func CheckNesting(root *Node) error {
	if root == nil {
		return nil
	}

	return checkNode(root, nil)
}

func checkNode(n *Node, parents []*Node) error {
	if msg := nestingViolation(n, parents); msg != "" {
		return ErrStructure.Wrap(errors.New(msg)).
			With(slog.String("kind", n.Kind.String())).
			At(n.Source)
	}

	parents = append(parents, n)

	for _, c := range n.Children {
		if err := checkNode(c, parents); err != nil {
			return err
		}
	}

	for _, c := range n.Else {
		if err := checkNode(c, parents); err != nil {
			return err
		}
	}

	return nil
}

// nearest returns the closest ancestor that is not a control construct,
// or nil at the top level.
func nearest(parents []*Node) *Node {
	for i := len(parents) - 1; i >= 0; i-- {
		if !parents[i].Kind.Control() {
			return parents[i]
		}
	}

	return nil
}

func within(parents []*Node, kinds ...Kind) bool {
	for _, p := range parents {
		for _, k := range kinds {
			if p.Kind == k {
				return true
			}
		}
	}

	return false
}

// nestingViolation returns a description of why n may not appear under
// parents, or the empty string.
func nestingViolation(n *Node, parents []*Node) string {
	if n.Kind == KindRoot {
		if len(parents) > 0 {
			return "root may only appear at the top of a document"
		}

		return ""
	}

	if len(parents) == 0 {
		return "document must begin with a root node"
	}

	parent := nearest(parents)
	direct := parents[len(parents)-1]

	if parent != nil && parent.Kind == KindFunction {
		switch n.Kind {
		case KindVariable, KindReturn, KindIf, KindEach, KindFor, KindWhile,
			KindDebug, KindWarn, KindError, KindComment:
		default:
			return "functions can only contain variable declarations and control directives"
		}
	}

	if parent != nil && parent.Kind == KindProp {
		switch n.Kind {
		case KindProp, KindComment, KindVariable, KindIf, KindEach, KindFor,
			KindWhile, KindDebug, KindWarn, KindError, KindInclude, KindContent:
		default:
			return "illegal nesting: only properties may be nested beneath properties"
		}
	}

	switch n.Kind {
	case KindProp:
		if parent == nil || parent.Kind == KindRoot {
			return "properties are only allowed within rules, directives, mixin includes, or other properties"
		}

	case KindExtend:
		if parent == nil || parent.Kind == KindRoot {
			return "extend directives may only be used within rules"
		}

	case KindReturn:
		if parent == nil || parent.Kind != KindFunction {
			return "return directives may only be used within a function"
		}

	case KindContent:
		if !within(parents, KindMixin) {
			return "content directives may only be used within a mixin"
		}

	case KindFunction, KindMixin:
		if direct.Kind.Control() || within(parents, KindMixin, KindFunction, KindInclude) {
			return n.Kind.String() + "s may not be defined within control directives or other mixins"
		}

	case KindImport:
		if direct.Kind.Control() || within(parents, KindMixin, KindFunction, KindInclude) {
			return "import directives may not be used within control directives or mixins"
		}

	case KindCSSImport:
		if within(parents, KindFunction) {
			return "CSS imports may not appear within a function"
		}
	}

	return ""
}
