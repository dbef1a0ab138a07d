package repl

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/expr-lang/expr/builtin"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/sassy/lang"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{"help", "list", "css", "tree", "edit", "clear", "quit"}

// exprBuiltins are the functions provided by the expression language.
var exprBuiltins = slices.Sorted(maps.Keys(builtin.Index))

// isWordBoundary reports whether r ends a completion word. Hyphens and "$"
// belong to words because variable and function names contain them.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']', '{', '}',
		'+', '*', '/', '%',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ':', ';', '#', '"', '\'':
		return true
	}

	return false
}

// wordBounds returns the word at the cursor and its byte boundaries
// within input. The word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// names is a snapshot of the names a session can complete.
type names struct {
	vars, fns, mixins []string
}

func namesOf(s *lang.Session) names {
	var n names

	n.vars, n.fns, n.mixins = s.Names()

	return n
}

// candidates returns the completion candidates for word. Words starting
// with "$" complete variables only.
func (n names) candidates(word string) []string {
	if strings.HasPrefix(word, "$") {
		return n.vars
	}

	out := make([]string, 0,
		len(n.fns)+len(n.mixins)+len(exprBuiltins)+len(lang.BuiltinNames()))
	out = append(out, n.fns...)
	out = append(out, n.mixins...)
	out = append(out, lang.BuiltinNames()...)
	out = append(out, exprBuiltins...)

	slices.Sort(out)

	return slices.Compact(out)
}

// isFunction reports whether name is callable in an expression.
func (n names) isFunction(name string) bool {
	if _, ok := builtin.Index[name]; ok {
		return true
	}

	return slices.Contains(n.fns, name) || slices.Contains(lang.BuiltinNames(), name)
}

// completion is the state of the candidate bar.
type completion struct {
	matches   fuzzy.Matches
	start     int // byte offset of the word being completed
	end       int
	idx       int // selected candidate while cycling, else -1
	cycling   bool
	preText   string // input before cycling began
	preCursor int
}

// computeMatches ranks the candidates for the word at the cursor. An empty
// word has no matches, which leaves room for the hint line.
func (m model) computeMatches() (fuzzy.Matches, int, int) {
	word, start, end := wordBounds(m.input.Value(), m.input.Position())
	if word == "" {
		return nil, start, end
	}

	candidates := ctrlCommands
	if m.mode == modeEval {
		candidates = m.names.candidates(word)
	}

	return fuzzy.Find(word, candidates), start, end
}

// renderCandidateBar builds the single-line completion bar, ellipsized to
// fit within width.
func (m model) renderCandidateBar() string {
	if len(m.comp.matches) == 0 || m.width <= 0 {
		return ""
	}

	const sep = "  "

	ellipsis := hintStyle.Render("...")
	budget := m.width - lipgloss.Width(ellipsis)

	var b strings.Builder

	for i, match := range m.comp.matches {
		entry := m.renderCandidate(match, m.comp.cycling && i == m.comp.idx)
		if i > 0 {
			entry = sep + entry
		}

		if i > 0 && lipgloss.Width(b.String())+lipgloss.Width(entry) > budget {
			b.WriteString(sep + ellipsis)

			break
		}

		b.WriteString(entry)
	}

	return b.String()
}

// renderCandidate renders one candidate with its matched characters
// highlighted. Functions carry a "()" suffix that is not inserted.
func (m model) renderCandidate(match fuzzy.Match, selected bool) string {
	base, hl := suggestionStyle, matchStyle
	if selected {
		base, hl = selectedStyle, selectedMatchStyle
	}

	var b strings.Builder

	for i, r := range match.Str {
		if slices.Contains(match.MatchedIndexes, i) {
			b.WriteString(hl.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	if m.mode == modeEval && m.names.isFunction(match.Str) {
		b.WriteString(base.Render("()"))
	}

	return b.String()
}
