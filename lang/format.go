package lang

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/goccy/go-yaml"
)

// FormatCSS serializes a flat stylesheet. Blocks are separated by a blank
// line and declarations are indented by two spaces.
func FormatCSS(s *Stylesheet) string {
	var b strings.Builder

	for i, blk := range s.Blocks {
		if i > 0 {
			b.WriteByte('\n')
		}

		switch blk.Kind {
		case KindCSSImport:
			fmt.Fprintf(&b, "@import %s;\n", blk.Text)

		case KindComment:
			b.WriteString(cssComment(blk.Text))
			b.WriteByte('\n')

		case KindRule:
			b.WriteString(blk.Selector.String())
			b.WriteString(" {\n")

			for _, d := range blk.Decls {
				if d.Comment {
					fmt.Fprintf(&b, "  %s\n", cssComment(d.Value))
				} else {
					fmt.Fprintf(&b, "  %s: %s;\n", d.Name, d.Value)
				}
			}

			b.WriteString("}\n")
		}
	}

	return b.String()
}

func cssComment(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/*") {
		return text
	}

	return "/* " + text + " */"
}

// FormatYAML encodes a tree in the YAML document format read by
// [ParseYAML].
func FormatYAML(root *Node) ([]byte, error) {
	return yaml.MarshalWithOptions(root,
		yaml.Indent(2),
		yaml.IndentSequence(true),
		yaml.UseLiteralStyleIfMultiline(true),
	)
}

// FormatJSON encodes a tree in the JSON form of the document format.
func FormatJSON(root *Node) ([]byte, error) {
	return yaml.MarshalWithOptions(root, yaml.JSON())
}

//nolint:gochecknoglobals
var (
	treeKindStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	treeTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	treePosStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	treeEnumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginRight(1)
)

// FormatTree renders a tree for terminal display.
func FormatTree(root *Node) string {
	return treeOf(root).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(treeEnumStyle).
		String()
}

func treeOf(n *Node) *tree.Tree {
	t := tree.Root(treeLabel(n))

	for _, c := range n.Children {
		t.Child(treeOf(c))
	}

	if len(n.Else) > 0 {
		alt := tree.Root(treeKindStyle.Render("else"))
		for _, c := range n.Else {
			alt.Child(treeOf(c))
		}

		t.Child(alt)
	}

	return t
}

func treeLabel(n *Node) string {
	label := treeKindStyle.Render(n.Kind.String())

	var text string

	switch {
	case n.Kind == KindRule && n.Selector != nil:
		text = n.Selector.String()
	case n.Kind == KindProp && n.Value != "":
		text = string(n.Name) + ": " + string(n.Value)
	case n.Kind == KindVariable:
		text = string(n.Name) + " = " + string(n.Value)
	case n.Kind == KindEach:
		text = strings.Join(n.Vars, ", ") + " in " + n.Expr
	case n.Kind == KindFor:
		to := " to "
		if n.Inclusive {
			to = " through "
		}

		text = n.Vars[0] + " from " + n.Expr + to + n.To
	default:
		if h, ok := n.head().(string); ok {
			text = h
		}
	}

	if text != "" {
		label += " " + treeTextStyle.Render(text)
	}

	if n.Source.Line > 0 {
		label += " " + treePosStyle.Render(n.Source.String())
	}

	return label
}
