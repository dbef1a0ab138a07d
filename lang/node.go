package lang

import (
	"strconv"
	"strings"

	"github.com/ardnew/sassy/lang/selector"
)

// Kind identifies the type of a [Node].
type Kind int

const (
	// KindRoot is the top of a document.
	KindRoot Kind = iota

	// KindRule is a rule block: a selector and a body.
	KindRule

	// KindProp is a property declaration, possibly with nested properties.
	KindProp

	// KindVariable assigns a variable.
	KindVariable

	// KindFunction declares a function.
	KindFunction

	// KindMixin declares a mixin.
	KindMixin

	// KindInclude invokes a mixin, optionally passing a content block.
	KindInclude

	// KindContent marks where an included content block is placed.
	KindContent

	// KindReturn returns a value from a function.
	KindReturn

	// KindImport imports another stylesheet.
	KindImport

	// KindComment is a comment, kept in output unless silent.
	KindComment

	// KindCSSImport is a plain CSS @import passed through to output.
	KindCSSImport

	// KindExtend extends rules matching a selector.
	KindExtend

	// KindIf is a conditional with an optional else branch.
	KindIf

	// KindEach iterates over a list or map.
	KindEach

	// KindFor iterates over an integer range.
	KindFor

	// KindWhile loops while a condition holds.
	KindWhile

	// KindDebug logs a message at debug level.
	KindDebug

	// KindWarn logs a message at warn level.
	KindWarn

	// KindError aborts compilation with a message.
	KindError
)

var kindNames = [...]string{
	KindRoot:      "root",
	KindRule:      "rule",
	KindProp:      "prop",
	KindVariable:  "var",
	KindFunction:  "function",
	KindMixin:     "mixin",
	KindInclude:   "include",
	KindContent:   "content",
	KindReturn:    "return",
	KindImport:    "import",
	KindComment:   "comment",
	KindCSSImport: "css-import",
	KindExtend:    "extend",
	KindIf:        "if",
	KindEach:      "each",
	KindFor:       "for",
	KindWhile:     "while",
	KindDebug:     "debug",
	KindWarn:      "warn",
	KindError:     "error",
}

// String returns the key that selects k in the YAML document format.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}

	return kindNames[k]
}

// Kinds returns every node kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, len(kindNames))
	for i := range kindNames {
		kinds[i] = Kind(i)
	}

	return kinds
}

// ParseKind returns the kind whose String is s.
func ParseKind(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}

	return 0, false
}

// Static reports whether k may appear in an evaluated tree.
func (k Kind) Static() bool {
	switch k {
	case KindRoot, KindRule, KindProp, KindComment, KindCSSImport, KindExtend:
		return true
	default:
		return false
	}
}

// Control reports whether k is a control construct.
func (k Kind) Control() bool {
	switch k {
	case KindIf, KindEach, KindFor, KindWhile:
		return true
	default:
		return false
	}
}

// Source is the range of a construct in its source file.
type Source struct {
	File      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// String returns "file:line:col".
func (s Source) String() string {
	var b strings.Builder

	b.WriteString(s.File)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(s.Line))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(s.Column))

	return b.String()
}

// Param is one declared parameter of a function or mixin.
// Default is evaluated only when the caller omits the argument.
type Param struct {
	Name       string
	Default    Interp
	HasDefault bool
}

// Arg is a named argument passed to a mixin.
type Arg struct {
	Name  string
	Value Interp
}

// Node is one node of a stylesheet tree.
//
// Which fields are meaningful depends on Kind:
//
//	Rule      Name (selector), Children; Selector after evaluation
//	Prop      Name, Value, Children (nested properties)
//	Variable  Name, Value, Global, Default
//	Function  Name, Params, Children
//	Mixin     Name, Params, Children
//	Include   Name, Args, KwArgs, Children (content block)
//	Return    Expr
//	Import    Name
//	Comment   Value, Silent
//	CSSImport Value
//	Extend    Name (selector), Optional; Selector (extender) after evaluation
//	If        Expr, Children, Else
//	Each      Vars, Expr, Children
//	For       Vars[0], Expr (from), To, Inclusive, Children
//	While     Expr, Children
//	Debug     Value (also Warn and Error)
type Node struct {
	Kind      Kind
	Name      Interp
	Value     Interp
	Expr      string
	To        string
	Vars      []string
	Params    []Param
	Args      []Interp
	KwArgs    []Arg
	Children  []*Node
	Else      []*Node
	Source    Source
	Selector  *selector.List
	Global    bool
	Default   bool
	Optional  bool
	Silent    bool
	Inclusive bool
}

// Walk calls fn for n and each of its descendants in depth-first order,
// children in original order. The else branch of an if node is visited
// after its children. Walk stops descending into a node when fn returns
// false.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	for _, c := range n.Children {
		c.Walk(fn)
	}

	for _, c := range n.Else {
		c.Walk(fn)
	}
}

// Append adds children to n.
func (n *Node) Append(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// NewRoot returns an empty root node for file.
func NewRoot(file string) *Node {
	return &Node{Kind: KindRoot, Source: Source{File: file, Line: 1, Column: 1}}
}

// normName canonicalizes a variable, function or mixin name: the leading
// "$" is removed and "_" is equivalent to "-".
func normName(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "$"), "_", "-")
}
