package repl

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/goccy/go-yaml"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

func TestStatement(t *testing.T) {
	data, err := statement("$gap: 2 + 2")
	if err != nil {
		t.Fatalf("statement() error = %v", err)
	}

	var got []map[string]string
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, data)
	}

	if len(got) != 1 || got[0]["var"] != "$gap" || got[0]["value"] != "#{2 + 2}" {
		t.Errorf("statement() = %v", got)
	}

	if data, err := statement("{rule: .a}"); err != nil || string(data) != "[{rule: .a}]" {
		t.Errorf("statement(flow mapping) = %q, %v", data, err)
	}

	for _, expr := range []string{"$a + 1", "$a ? 1 : 2", "map-get($m, a)"} {
		if data, err := statement(expr); data != nil || err != nil {
			t.Errorf("statement(%q) = %q, %v, want expression", expr, data, err)
		}
	}

	if _, err := statement("$gap:  "); !errors.Is(err, ErrStatement) {
		t.Errorf("statement() error = %v, want %v", err, ErrStatement)
	}
}

// testModel returns a model over an empty session with its history in a
// temporary directory.
func testModel(t *testing.T) model {
	t.Helper()

	session, err := lang.NewSession(t.Context(), lang.NewRoot("<repl>"),
		lang.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	history := NewHistory(filepath.Join(t.TempDir(), baseHistory))

	return newModel(t.Context(), session, history, log.Discard())
}

// enter submits line in the model's current mode.
func enter(t *testing.T, m model, line string) model {
	t.Helper()

	m.input.SetValue(line)

	next, _ := m.submit()

	return next
}

func TestModelSubmit(t *testing.T) {
	m := testModel(t)

	m = enter(t, m, "$gap: 2 + 2")
	m = enter(t, m, "{function: twice, params: [$n], children: [{return: '$n * 2'}]}")
	m = enter(t, m, "{rule: .a, children: [{prop: margin, value: '#{twice($gap)}px'}]}")

	if got, err := m.session.Eval("$gap"); err != nil || lang.ToCSS(got) != "4" {
		t.Errorf("Eval($gap) = %v, %v, want 4", got, err)
	}

	if !slices.Contains(m.names.vars, "$gap") || !slices.Contains(m.names.fns, "twice") {
		t.Errorf("names not refreshed: %+v", m.names)
	}

	css, err := m.session.CSS()
	if err != nil {
		t.Fatalf("CSS() error = %v", err)
	}

	if css != ".a {\n  margin: 8px;\n}\n" {
		t.Errorf("CSS() = %q", css)
	}

	if params, ok := m.session.Signature("twice"); !ok || !slices.Equal(params, []string{"$n"}) {
		t.Errorf("Signature(twice) = %q, %v", params, ok)
	}

	if m.history.Len() != 3 || m.histIdx != 3 {
		t.Errorf("history len = %d, index = %d, want 3, 3", m.history.Len(), m.histIdx)
	}

	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}

	// An invalid line is recorded but leaves the session unchanged.
	m = enter(t, m, "$gap: $missing")
	if got, _ := m.session.Eval("$gap"); lang.ToCSS(got) != "4" {
		t.Errorf("Eval($gap) = %v after failed assignment", got)
	}
}

func TestModelList(t *testing.T) {
	m := testModel(t)

	m = enter(t, m, "$gap: 4")
	m = enter(t, m, "{mixin: box, children: []}")

	all := ansi.Strip(m.list())
	for _, want := range []string{"$gap 4", "@box"} {
		if !strings.Contains(all, want) {
			t.Errorf("list() missing %q:\n%s", want, all)
		}
	}

	if got := ansi.Strip(m.list("mixins")); strings.Contains(got, "$gap") {
		t.Errorf("list(mixins) = %q", got)
	}
}

func TestModelModes(t *testing.T) {
	m := testModel(t)

	m.input.SetValue("$a +")
	m = m.switchMode(modeCtrl)

	if m.input.Value() != "" {
		t.Errorf("ctrl input = %q, want empty", m.input.Value())
	}

	m.input.SetValue("cs")
	m.refresh(false)

	if len(m.comp.matches) == 0 || m.comp.matches[0].Str != "css" {
		t.Errorf("ctrl matches = %v", m.comp.matches)
	}

	m = m.switchMode(modeEval)
	if m.input.Value() != "$a +" {
		t.Errorf("eval input = %q, want restored", m.input.Value())
	}

	m = enter(t, m, "1 + 1")
	m = m.switchMode(modeCtrl)
	m = enter(t, m, "help")

	// Recalling across modes switches to the mode of the entry.
	m = m.recall(-1, false)
	if m.mode != modeCtrl || m.input.Value() != "help" {
		t.Errorf("recall = %q in mode %d", m.input.Value(), m.mode)
	}

	m = m.recall(-1, false)
	if m.mode != modeEval || m.input.Value() != "1 + 1" {
		t.Errorf("recall = %q in mode %d", m.input.Value(), m.mode)
	}

	m = m.recall(1, true)
	if m.input.Value() != "" || m.histIdx != m.history.Len() {
		t.Errorf("recall past newest = %q at %d", m.input.Value(), m.histIdx)
	}
}

func TestModelCycle(t *testing.T) {
	m := testModel(t)

	m = enter(t, m, "$gap-small: 1")
	m = enter(t, m, "$gap-large: 2")

	m.input.SetValue("$gap")
	m.input.SetCursor(4)
	m.refresh(true)

	if len(m.comp.matches) != 2 {
		t.Fatalf("matches = %v, want 2", m.comp.matches)
	}

	first := m.comp.matches[0].Str

	m = m.cycle(1)
	if !m.comp.cycling || m.input.Value() != first {
		t.Errorf("cycle(1) input = %q, want %q", m.input.Value(), first)
	}

	m = m.cycle(1)
	m = m.cycle(1)
	if m.input.Value() != first {
		t.Errorf("cycle wrapped to %q, want %q", m.input.Value(), first)
	}

	next, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if next.comp.cycling || next.input.Value() != "$gap" {
		t.Errorf("Esc restored %q", next.input.Value())
	}

	next, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if next.comp.cycling || next.input.Value() != first {
		t.Errorf("Enter kept %q, want %q", next.input.Value(), first)
	}

	if next.history.Len() != 2 {
		t.Error("Enter while cycling submitted the input")
	}
}
