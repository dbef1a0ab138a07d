package selector

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Error describes a selector that could not be parsed or resolved.
type Error struct {
	Text string
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Text == "" {
		return e.Msg
	}

	return fmt.Sprintf("%s at offset %d in %q", e.Msg, e.Pos, e.Text)
}

// Parse parses a comma-separated selector list. Leading combinators are
// accepted so that nested rules like "> li" can be resolved against their
// parent later.
func Parse(text string) (*List, error) {
	p := &parser{text: text}

	list, err := p.list()
	if err != nil {
		return nil, err
	}

	return list, nil
}

// MustParse is like [Parse] but panics on error.
func MustParse(text string) *List {
	l, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return l
}

// ParseCompound parses text as a single compound selector, as required of
// extension targets.
func ParseCompound(text string) (Compound, error) {
	l, err := Parse(text)
	if err != nil {
		return Compound{}, err
	}

	if len(l.Complexes) != 1 || len(l.Complexes[0].Steps) != 1 ||
		l.Complexes[0].Steps[0].Combinator != Descendant {
		return Compound{}, &Error{
			Text: text,
			Msg:  "expected a single compound selector",
		}
	}

	return l.Complexes[0].Steps[0].Compound, nil
}

type parser struct {
	text string
	pos  int
}

func (p *parser) fail(format string, args ...any) error {
	return &Error{Text: p.text, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.text) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}

	return p.text[p.pos]
}

func (p *parser) skipSpace() bool {
	start := p.pos

	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}

	return p.pos > start
}

func (p *parser) list() (*List, error) {
	list := &List{}

	for {
		p.skipSpace()

		c, err := p.complex()
		if err != nil {
			return nil, err
		}

		list.Complexes = append(list.Complexes, c)

		p.skipSpace()

		if p.eof() {
			return list, nil
		}

		if p.peek() != ',' {
			return nil, p.fail("unexpected %q", p.peek())
		}

		p.pos++
	}
}

func (p *parser) complex() (Complex, error) {
	var (
		c    Complex
		comb = Descendant
		seen bool
	)

	for {
		p.skipSpace()

		if p.eof() || p.peek() == ',' {
			break
		}

		if k, ok := combinator(p.peek()); ok {
			if seen {
				return Complex{}, p.fail("unexpected combinator %q", p.peek())
			}

			comb, seen = k, true
			p.pos++

			continue
		}

		compound, err := p.compound()
		if err != nil {
			return Complex{}, err
		}

		c.Steps = append(c.Steps, Step{Combinator: comb, Compound: compound})
		comb, seen = Descendant, false
	}

	switch {
	case seen:
		return Complex{}, p.fail("expected selector after combinator")
	case len(c.Steps) == 0:
		return Complex{}, p.fail("expected selector")
	}

	return c, nil
}

func (p *parser) compound() (Compound, error) {
	var c Compound

	for !p.eof() {
		ch := p.peek()
		if isSpace(ch) || ch == ',' {
			break
		}

		if _, ok := combinator(ch); ok {
			break
		}

		s, err := p.simple()
		if err != nil {
			return Compound{}, err
		}

		if s.Kind == Parent && len(c.Simples) > 0 {
			return Compound{}, p.fail(
				"%q may only be used at the beginning of a compound selector", "&",
			)
		}

		c.Simples = append(c.Simples, s)
	}

	if len(c.Simples) == 0 {
		return Compound{}, p.fail("expected selector")
	}

	return c, nil
}

func (p *parser) simple() (Simple, error) {
	switch ch := p.peek(); ch {
	case '*':
		p.pos++

		return Simple{Kind: Universal}, nil

	case '&':
		p.pos++

		return Simple{Kind: Parent, Suffix: p.name()}, nil

	case '.', '#', '%':
		p.pos++

		name := p.name()
		if name == "" {
			return Simple{}, p.fail("expected name after %q", ch)
		}

		kind := map[byte]Kind{'.': Class, '#': ID, '%': Placeholder}[ch]

		return Simple{Kind: kind, Name: name}, nil

	case '[':
		p.pos++

		arg, err := p.until(']')
		if err != nil {
			return Simple{}, err
		}

		return Simple{Kind: Attribute, Arg: strings.TrimSpace(arg)}, nil

	case ':':
		start := p.pos
		p.pos++

		if p.peek() == ':' {
			p.pos++
		}

		name := p.name()
		if name == "" {
			return Simple{}, p.fail("expected pseudo-class name")
		}

		s := Simple{Kind: Pseudo, Name: p.text[start:p.pos]}

		if p.peek() == '(' {
			p.pos++

			arg, err := p.until(')')
			if err != nil {
				return Simple{}, err
			}

			s.Arg, s.HasArg = strings.TrimSpace(arg), true
		}

		return s, nil

	default:
		name := p.name()
		if name == "" {
			return Simple{}, p.fail("unexpected %q", ch)
		}

		return Simple{Kind: Type, Name: name}, nil
	}
}

// name consumes an identifier, including escapes and non-ASCII runes.
func (p *parser) name() string {
	start := p.pos

	for !p.eof() {
		ch := p.peek()

		switch {
		case ch == '\\' && p.pos+1 < len(p.text):
			_, size := utf8.DecodeRuneInString(p.text[p.pos+1:])
			p.pos += 1 + size
		case ch >= utf8.RuneSelf:
			_, size := utf8.DecodeRuneInString(p.text[p.pos:])
			p.pos += size
		case isNameByte(ch):
			p.pos++
		default:
			return p.text[start:p.pos]
		}
	}

	return p.text[start:p.pos]
}

// until consumes text up to the matching close byte, honoring nested
// brackets and quoted strings, and returns the text without the delimiter.
func (p *parser) until(closer byte) (string, error) {
	var (
		start = p.pos
		stack = []byte{closer}
		quote byte
	)

	for ; !p.eof(); p.pos++ {
		ch := p.peek()

		switch {
		case quote != 0:
			if ch == '\\' {
				p.pos++
			} else if ch == quote {
				quote = 0
			}

		case ch == '"' || ch == '\'':
			quote = ch

		case ch == '(':
			stack = append(stack, ')')

		case ch == '[':
			stack = append(stack, ']')

		case ch == stack[len(stack)-1]:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				arg := p.text[start:p.pos]
				p.pos++

				return arg, nil
			}
		}
	}

	return "", p.fail("expected %q", closer)
}

func combinator(ch byte) (Combinator, bool) {
	switch ch {
	case '>':
		return Child, true
	case '+':
		return Adjacent, true
	case '~':
		return Sibling, true
	default:
		return Descendant, false
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isNameByte(ch byte) bool {
	return ch == '-' || ch == '_' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}
