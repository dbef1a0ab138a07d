package lang

import (
	"strings"

	"github.com/expr-lang/expr/ast"
)

// Environment entries the patched expressions call into.
const (
	// callName routes every user-level call. It receives the callee name
	// and the evaluated arguments.
	callName = "__call"
	// varName reads a variable when the expression reaches it.
	varName = "__var"
	// truthyName converts a condition of if() to a bool.
	truthyName = "__truthy"
)

// sassPatcher rewrites expr-lang parse trees into stylesheet expressions.
//
// Stylesheet names may contain hyphens ($font-size, sans-serif,
// type-of(x)), which expr-lang parses as subtraction. Walking post-order,
// the patcher joins such chains back into single identifiers and rewrites
// calls of non-builtin functions into calls of [callName], so that
// functions declared by the stylesheet are resolved at run time.
type sassPatcher struct{}

// Visit implements ast.Visitor.
func (sassPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		ident, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || ident.Value == callName {
			return
		}

		ast.Patch(node, makeCall(ident.Value, n.Arguments))

	case *ast.BinaryNode:
		if n.Operator != "-" {
			return
		}

		left, ok := n.Left.(*ast.IdentifierNode)
		if !ok {
			return
		}

		switch right := n.Right.(type) {
		case *ast.IdentifierNode:
			if strings.HasPrefix(right.Value, "$") || right.Value == callName {
				return
			}

			ast.Patch(node, &ast.IdentifierNode{Value: left.Value + "-" + right.Value})

		case *ast.CallNode:
			name, args, ok := patchedCall(right)
			if !ok || strings.HasPrefix(left.Value, "$") {
				return
			}

			ast.Patch(node, makeCall(left.Value+"-"+name, args))

		case *ast.BuiltinNode:
			// The tail of a hyphenated call may collide with a builtin
			// name, as in map-get($m, k).
			if strings.HasPrefix(left.Value, "$") {
				return
			}

			ast.Patch(node, makeCall(left.Value+"-"+right.Name, right.Arguments))
		}
	}
}

// makeCall returns the node for __call("name", [args...]).
func makeCall(name string, args []ast.Node) *ast.CallNode {
	return &ast.CallNode{
		Callee: &ast.IdentifierNode{Value: callName},
		Arguments: []ast.Node{
			&ast.StringNode{Value: name},
			&ast.ArrayNode{Nodes: args},
		},
	}
}

// lazyPatcher runs after [sassPatcher], once names are joined. It turns
// each "$name" into a lookup made when evaluation reaches it, and if()
// with three arguments into a conditional, so the branch not taken is
// never evaluated.
type lazyPatcher struct{}

// Visit implements ast.Visitor.
func (lazyPatcher) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !strings.HasPrefix(n.Value, "$") {
			return
		}

		ast.Patch(node, &ast.CallNode{
			Callee:    &ast.IdentifierNode{Value: varName},
			Arguments: []ast.Node{&ast.StringNode{Value: n.Value}},
		})

	case *ast.CallNode:
		name, args, ok := patchedCall(n)
		if !ok || name != "if" || len(args) != 3 {
			return
		}

		ast.Patch(node, &ast.ConditionalNode{
			Cond: &ast.CallNode{
				Callee:    &ast.IdentifierNode{Value: truthyName},
				Arguments: []ast.Node{args[0]},
			},
			Exp1: args[1],
			Exp2: args[2],
		})
	}
}

// patchedCall unpacks a node created by makeCall.
func patchedCall(n *ast.CallNode) (string, []ast.Node, bool) {
	ident, ok := n.Callee.(*ast.IdentifierNode)
	if !ok || ident.Value != callName || len(n.Arguments) != 2 {
		return "", nil, false
	}

	name, ok := n.Arguments[0].(*ast.StringNode)
	if !ok {
		return "", nil, false
	}

	args, ok := n.Arguments[1].(*ast.ArrayNode)
	if !ok {
		return "", nil, false
	}

	return name.Value, args.Nodes, true
}

// refCollector records the identifiers an expression reads, excluding
// names bound by let declarations.
type refCollector struct {
	seen  map[string]struct{}
	local map[string]struct{}
	refs  []string
}

// Visit implements ast.Visitor.
func (c *refCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.VariableDeclaratorNode:
		c.local[n.Name] = struct{}{}

	case *ast.IdentifierNode:
		switch n.Value {
		case callName, varName, truthyName:
			return
		}

		if _, ok := c.seen[n.Value]; ok {
			return
		}

		c.seen[n.Value] = struct{}{}
		c.refs = append(c.refs, n.Value)
	}
}

// collectRefs returns the free identifiers of tree in first-use order.
func collectRefs(tree ast.Node) []string {
	c := &refCollector{
		seen:  make(map[string]struct{}),
		local: make(map[string]struct{}),
	}

	ast.Walk(&tree, c)

	refs := c.refs[:0]

	for _, ref := range c.refs {
		if _, ok := c.local[ref]; !ok {
			refs = append(refs, ref)
		}
	}

	return refs
}
