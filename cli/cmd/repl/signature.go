package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// functionCall is the innermost call whose argument list holds the cursor.
type functionCall struct {
	name     string
	argIndex int
	inCall   bool
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// detectFunctionCall finds the unclosed "(" before cursor and the name
// in front of it. Brackets and parentheses nested inside the argument list
// are skipped when counting arguments.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	open, depth := -1, 0

scan:
	for i := cursor - 1; i >= 0; i-- {
		switch input[i] {
		case ')', ']':
			depth++
		case '(', '[':
			if depth == 0 {
				if input[i] == '(' {
					open = i
				}

				break scan
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isNameRune(r) {
			break
		}

		start -= size
	}

	name := input[start:open]
	if name == "" {
		return functionCall{}
	}

	arg := 0
	depth = 0

	for i := open + 1; i < cursor; i++ {
		switch input[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				arg++
			}
		}
	}

	return functionCall{name: name, argIndex: arg, inCall: true}
}

// renderSignatureHint renders name(params) with the parameter at current
// highlighted.
func renderSignatureHint(name string, params []string, current int) string {
	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(name))
	b.WriteString(signatureStyle.Render("("))

	for i, p := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		if i == current {
			b.WriteString(currentParamStyle.Render(p))
		} else {
			b.WriteString(signatureStyle.Render(p))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
