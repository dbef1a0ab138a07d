package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

// editDoneMsg carries the validated statements written in the editor.
type editDoneMsg struct{ data []byte }

// editCancelledMsg is sent when the user saved an empty document.
type editCancelledMsg struct{}

// editDeclinedMsg is sent when the user declined to re-edit after a parse
// error.
type editDeclinedMsg struct{}

// editErrorMsg is sent when the edit process encounters a non-parse error.
type editErrorMsg struct{ err error }

const (
	evalPrompt = "➜ "
	ctrlPrompt = " :"
)

func helpMessage() string {
	return `
: Commands (press Esc to toggle mode):

  help     Print this cruft
  list     List variables, functions and mixins
  css      Print the CSS produced so far
  tree     Print the output tree produced so far
  edit     Write statements in external $EDITOR
  clear    Clear screen
  quit     Exit REPL

Usage:
  Type an expression to evaluate it          $gutter * 2
  Assign a variable with "$name: expr"       $gutter: 4 + 4
  Enter statements as a YAML flow mapping    {rule: .a, children: [{prop: color, value: red}]}
  Completions appear automatically as you type
  Press Tab / Shift-Tab to cycle through candidates
  Press Esc to toggle between eval and command modes
  Use Up/Down arrows for history navigation (mode switches automatically)
  Use Shift+Up/Shift+Down for history navigation within current mode only
  Press Ctrl+C on empty line or Ctrl+D to exit
`
}

// inputMode represents the current input mode.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
	selectedMatchStyle = selectedStyle.Bold(true)
)

// echo formats a submitted line with the prompt of its mode.
func echo(mode inputMode, input string) string {
	if mode == modeCtrl {
		return ctrlPromptStyle.Render(ctrlPrompt) + inputStyle.Render(input)
	}

	return promptStyle.Render(evalPrompt) + inputStyle.Render(input)
}

func printError(err error) tea.Cmd {
	return tea.Println(errorStyle.Render("error: " + err.Error()))
}

// savedInput is the input line of a mode while the other mode is active.
type savedInput struct {
	text   string
	cursor int
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc  func() context.Context
	session  *lang.Session
	names    names
	logger   log.Logger
	input    textinput.Model
	history  *History
	histIdx  int
	comp     completion
	width    int // terminal width for ellipsization
	quitting bool
	mode     inputMode
	saved    [2]savedInput
}

// Run starts the REPL over the stylesheet name, resolved with opts. An
// empty name starts from an empty stylesheet.
func Run(
	ctx context.Context,
	name string,
	cacheDir string,
	logger log.Logger,
	opts ...lang.Option,
) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	logger.TraceContext(
		ctx,
		"repl start",
		slog.String("cache_dir", cacheDir),
		slog.String("source", name),
	)

	session, err := open(ctx, name, opts)
	if err != nil {
		return err
	}

	history := NewHistory(filepath.Join(cacheDir, baseHistory))
	if err := history.Load(); err != nil {
		logger.WarnContext(ctx, "could not load history",
			slog.String("path", filepath.Join(cacheDir, baseHistory)),
			slog.String("error", err.Error()),
		)
	}

	logger.TraceContext(
		ctx,
		"repl history loaded",
		slog.Int("entry_count", history.Len()),
	)

	p := tea.NewProgram(newModel(ctx, session, history, logger), tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

func open(ctx context.Context, name string, opts []lang.Option) (*lang.Session, error) {
	if name == "" {
		return lang.NewSession(ctx, lang.NewRoot("<repl>"), opts...)
	}

	return lang.OpenSession(ctx, name, opts...)
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	session *lang.Session,
	history *History,
	logger log.Logger,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ctxFunc: func() context.Context { return ctx },
		session: session,
		names:   namesOf(session),
		logger:  logger,
		input:   ti,
		history: history,
		histIdx: history.Len(),
		comp:    completion{idx: -1},
		width:   defaultWidth,
		mode:    modeEval,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(evalPrompt) - 2

		return m, nil

	case editDoneMsg:
		return m, m.exec(msg.data)

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("edit cancelled"))

	case editDeclinedMsg:
		m.quitting = true

		return m, tea.Quit

	case editErrorMsg:
		return m, printError(msg.err)
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	return m.input.View() + "\n" + m.hint() + "\n"
}

// hint returns the line shown below the input.
func (m model) hint() string {
	input := m.input.Value()

	if m.histIdx < m.history.Len() {
		return hintStyle.Render(fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.histIdx+1)),
			m.history.Len()))
	}

	if strings.TrimSpace(input) == "" {
		if m.mode == modeEval {
			return hintStyle.Render("Type an expression or press Esc for commands")
		}

		return hintStyle.Render("Type: " + strings.Join(ctrlCommands, ", ") + " (press Esc to return)")
	}

	if m.mode == modeEval && len(m.comp.matches) == 0 {
		call := detectFunctionCall(input, m.input.Position())
		if call.inCall {
			if params, ok := m.session.Signature(call.name); ok {
				return renderSignatureHint(call.name, params, call.argIndex)
			}
		}
	}

	return m.renderCandidateBar()
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(
		m.ctxFunc(),
		"repl keypress",
		slog.String("key", msg.String()),
	)

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.histIdx = m.history.Len()
		m.comp.cycling = false
		m.setInput("")

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if m.comp.cycling {
			// Lock in the current candidate without submitting.
			m.comp.cycling = false
			m.refresh(true)

			return m, nil
		}

		return m.submit()

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.recall(-1, false), nil

	case tea.KeyDown:
		return m.recall(1, false), nil

	case tea.KeyShiftUp:
		return m.recall(-1, true), nil

	case tea.KeyShiftDown:
		return m.recall(1, true), nil

	case tea.KeyEsc:
		if m.comp.cycling {
			m.comp.cycling = false
			m.input.SetValue(m.comp.preText)
			m.input.SetCursor(m.comp.preCursor)
			m.refresh(false)

			return m, nil
		}

		if m.mode == modeEval {
			return m.switchMode(modeCtrl), nil
		}

		return m.switchMode(modeEval), nil
	}

	// Space accepts the candidate being cycled.
	if msg.Type == tea.KeyRunes && m.comp.cycling && msg.String() == " " {
		m.comp.cycling = false
	}

	var cmd tea.Cmd

	m.histIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)

	if msg.Type != tea.KeyRunes {
		m.comp.cycling = false
	}

	// Only typing auto-confirms, so deletions and cursor movement never
	// complete unexpectedly.
	m.refresh(msg.Type == tea.KeyRunes)

	return m, cmd
}

// cycle selects the next (step 1) or previous (step -1) candidate and
// writes it into the input. A single candidate is accepted at once.
func (m model) cycle(step int) model {
	n := len(m.comp.matches)

	switch {
	case n == 0:
		return m

	case n == 1:
		m.replaceWord(m.comp.matches[0].Str)
		m.comp = completion{idx: -1}

		return m

	case !m.comp.cycling:
		m.comp.cycling = true
		m.comp.preText = m.input.Value()
		m.comp.preCursor = m.input.Position()

		m.comp.idx = 0
		if step < 0 {
			m.comp.idx = n - 1
		}

	default:
		m.comp.idx = (m.comp.idx + step + n) % n
	}

	m.replaceWord(m.comp.matches[m.comp.idx].Str)

	return m
}

// replaceWord replaces the word being completed with s.
func (m *model) replaceWord(s string) {
	input := m.input.Value()
	cursor := m.comp.start + len(s)

	m.input.SetValue(input[:m.comp.start] + s + input[m.comp.end:])
	m.input.SetCursor(cursor)

	m.comp.end = cursor
}

// refresh recomputes the candidates for the word at the cursor. With
// autoConfirm, a word that already equals its only candidate clears the
// candidate bar.
func (m *model) refresh(autoConfirm bool) {
	m.comp.matches, m.comp.start, m.comp.end = m.computeMatches()

	if !m.comp.cycling {
		m.comp.idx = -1
	}

	if autoConfirm && len(m.comp.matches) == 1 &&
		m.input.Value()[m.comp.start:m.comp.end] == m.comp.matches[0].Str {
		m.comp = completion{idx: -1}
	}
}

func (m *model) setInput(s string) {
	m.input.SetValue(s)
	m.input.SetCursor(len(s))
	m.refresh(false)
}

// recall moves step entries through the history. With sameMode, entries
// of the other mode are skipped; otherwise the mode follows the entry.
// Moving past the newest entry clears the input.
func (m model) recall(step int, sameMode bool) model {
	for i := m.histIdx + step; i >= 0 && i < m.history.Len(); i += step {
		e, err := m.history.Entry(i)
		if err != nil {
			break
		}

		if sameMode && e.Mode != m.mode {
			continue
		}

		if e.Mode != m.mode {
			m = m.switchMode(e.Mode)
		}

		m.histIdx = i
		m.setInput(e.Line)

		return m
	}

	if step > 0 && m.histIdx < m.history.Len() {
		m.histIdx = m.history.Len()
		m.setInput("")
	}

	return m
}

// switchMode activates mode, keeping each mode's unsubmitted input.
func (m model) switchMode(mode inputMode) model {
	m.saved[m.mode] = savedInput{m.input.Value(), m.input.Position()}
	m.mode = mode

	if mode == modeEval {
		m.input.Prompt = promptStyle.Render(evalPrompt)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
	}

	m.input.SetValue(m.saved[mode].text)
	m.input.SetCursor(m.saved[mode].cursor)
	m.comp = completion{idx: -1}
	m.refresh(false)

	return m
}

func (m model) submit() (model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}

	m.saved = [2]savedInput{}
	m.comp = completion{idx: -1}
	m.input.SetValue("")

	if err := m.history.Add(line, m.mode); err != nil {
		m.logger.WarnContext(m.ctxFunc(), "could not save history",
			slog.String("error", err.Error()),
		)
	}

	m.histIdx = m.history.Len()

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl submit",
		slog.String("input", line),
		slog.Int("mode", int(m.mode)),
	)

	if m.mode == modeCtrl {
		return m.command(line)
	}

	return m.evaluate(line)
}

// assignment matches the "$name: expr" shorthand.
var assignment = regexp.MustCompile(`^(\$[\w-]+)\s*:\s*(.*)$`)

// statement returns the YAML statements entered as line, or nil when line
// is an expression.
func statement(line string) ([]byte, error) {
	if strings.HasPrefix(line, "{") {
		return []byte("[" + line + "]"), nil
	}

	sub := assignment.FindStringSubmatch(line)
	if sub == nil {
		return nil, nil
	}

	if strings.TrimSpace(sub[2]) == "" {
		return nil, fmt.Errorf("%w: missing value for %s", ErrStatement, sub[1])
	}

	return yaml.Marshal([]map[string]string{
		{"var": sub[1], "value": "#{" + sub[2] + "}"},
	})
}

func (m model) evaluate(line string) (model, tea.Cmd) {
	echoCmd := tea.Println(echo(modeEval, line))

	data, err := statement(line)
	if err != nil {
		return m, tea.Sequence(echoCmd, printError(err))
	}

	if data != nil {
		return m, tea.Sequence(echoCmd, m.exec(data))
	}

	result, err := m.session.Eval(line)
	if err != nil {
		m.logger.TraceContext(m.ctxFunc(), "repl eval result",
			slog.String("error", err.Error()),
		)

		return m, tea.Sequence(echoCmd, printError(err))
	}

	m.logger.TraceContext(m.ctxFunc(), "repl eval result",
		slog.String("result_type", lang.TypeOf(result)),
	)

	return m, tea.Sequence(echoCmd, tea.Println(
		resultStyle.Render(lang.ToCSS(result))+" "+hintStyle.Render(lang.TypeOf(result)),
	))
}

// exec evaluates statements at the top level of the session and reports
// how many output nodes they produced.
func (m *model) exec(data []byte) tea.Cmd {
	before := len(m.session.Tree().Children)

	err := m.session.Exec(m.ctxFunc(), data)
	m.names = namesOf(m.session)

	if err != nil {
		return printError(err)
	}

	msg := "ok"
	if n := len(m.session.Tree().Children) - before; n > 0 {
		msg = fmt.Sprintf("ok (%d output nodes)", n)
	}

	return tea.Println(resultStyle.Render(msg))
}

func (m model) command(line string) (model, tea.Cmd) {
	echoCmd := tea.Println(echo(modeCtrl, line))

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echoCmd, tea.Quit)

	case "h", "help":
		return m, tea.Sequence(echoCmd, tea.Println(helpMessage()))

	case "l", "list":
		return m, tea.Sequence(echoCmd, tea.Println(m.list(args...)))

	case "css":
		css, err := m.session.CSS()
		if err != nil {
			return m, tea.Sequence(echoCmd, printError(err))
		}

		return m, tea.Sequence(echoCmd, tea.Println(css))

	case "tree":
		return m, tea.Sequence(echoCmd, tea.Println(lang.FormatTree(m.session.Tree())))

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echoCmd, m.edit())
	}

	return m, tea.Println(errorStyle.Render("Unknown command: " + cmd + " (try 'help')"))
}

// list describes the top-level names. Arguments restrict the listing to
// "vars", "functions" or "mixins".
func (m model) list(kinds ...string) string {
	show := func(kind string) bool {
		if len(kinds) == 0 {
			return true
		}

		for _, k := range kinds {
			if strings.HasPrefix(kind, k) {
				return true
			}
		}

		return false
	}

	var b strings.Builder

	if show("vars") {
		for _, name := range m.names.vars {
			preview := "<error>"
			if v, err := m.session.Eval(name); err == nil {
				preview = lang.ToCSS(v)
			}

			fmt.Fprintf(&b, "  %s %s\n", name, hintStyle.Render(preview))
		}
	}

	if show("functions") {
		for _, name := range m.names.fns {
			params, _ := m.session.Signature(name)
			fmt.Fprintf(&b, "  %s%s\n", name,
				hintStyle.Render("("+strings.Join(params, ", ")+")"))
		}
	}

	if show("mixins") {
		for _, name := range m.names.mixins {
			fmt.Fprintf(&b, "  @%s\n", name)
		}
	}

	return b.String()
}

func (m model) edit() tea.Cmd {
	cmd := &editCommand{ctx: m.ctxFunc(), logger: m.logger}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editDeclinedMsg{}

		case err != nil:
			return editErrorMsg{err: err}

		case cmd.data == nil:
			return editCancelledMsg{}
		}

		return editDoneMsg{data: cmd.data}
	})
}
