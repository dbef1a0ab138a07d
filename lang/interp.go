package lang

import (
	"errors"
	"log/slog"
	"strings"
)

// Interp is text with embedded #{expr} segments.
type Interp string

type segment struct {
	text   string
	isExpr bool
}

// IsLiteral reports whether s contains no interpolation.
func (s Interp) IsLiteral() bool {
	return !strings.Contains(string(s), "#{")
}

// segments splits s into literal text and expression source.
func (s Interp) segments() ([]segment, error) {
	var (
		out  []segment
		text = string(s)
	)

	for {
		i := strings.Index(text, "#{")
		if i < 0 {
			break
		}

		if i > 0 {
			out = append(out, segment{text: text[:i]})
		}

		n, err := closeBrace(text[i+2:])
		if err != nil {
			return nil, ErrExprCompile.Wrap(err).With(slog.String("source", string(s)))
		}

		out = append(out, segment{text: strings.TrimSpace(text[i+2 : i+2+n]), isExpr: true})
		text = text[i+3+n:]
	}

	if text != "" || len(out) == 0 {
		out = append(out, segment{text: text})
	}

	return out, nil
}

// closeBrace returns the offset of the brace closing an interpolation,
// skipping nested braces and quoted strings.
func closeBrace(text string) (int, error) {
	var (
		depth int
		quote byte
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]

		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}

		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch

		case ch == '{':
			depth++

		case ch == '}':
			if depth == 0 {
				return i, nil
			}

			depth--
		}
	}

	return 0, errors.New("unterminated interpolation")
}
