package repl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

const defaultEditor = "vi"

const editTemplate = `# Statements entered here are evaluated at the top level of the session.
# Save an empty file to cancel.
#
# - var: $gutter
#   value: "#{percentage(0.25)}"
# - rule: .note
#   children:
#     - prop: margin
#       value: $gutter
`

// editCommand implements [tea.ExecCommand]. It opens the user's editor on
// a scratch document and validates the statements written to it. On a
// parse or nesting error the user is asked to edit again; declining exits
// the session with [ErrEditDeclined].
type editCommand struct {
	ctx    context.Context
	logger log.Logger
	data   []byte // validated statements, nil when cancelled
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *editCommand) SetStdin(r io.Reader)  { c.stdin = r }
func (c *editCommand) SetStdout(w io.Writer) { c.stdout = w }
func (c *editCommand) SetStderr(w io.Writer) { c.stderr = w }

func (c *editCommand) Run() error {
	f, err := os.CreateTemp("", "sassy-repl-*.yaml")
	if err != nil {
		return err
	}

	path := f.Name()
	defer os.Remove(path)

	f.Close()

	content := []byte(editTemplate)

	for {
		if err := os.WriteFile(path, content, 0o600); err != nil {
			return err
		}

		if err := c.editor(path); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if len(bytes.TrimSpace(uncomment(data))) == 0 {
			return nil
		}

		err = validate(c.ctx, data)
		c.logger.TraceContext(c.ctx, "editor parse attempt",
			slog.Int("content_length", len(data)),
			slog.Bool("success", err == nil),
		)

		if err == nil {
			c.data = data

			return nil
		}

		fmt.Fprintf(c.stderr, "\n%s\n", err)
		fmt.Fprint(c.stdout, "Re-edit? [Y/n] ")

		scanner := bufio.NewScanner(c.stdin)
		if !scanner.Scan() {
			return ErrEditDeclined
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "n", "no":
			return ErrEditDeclined
		}

		content = data
	}
}

func (c *editCommand) editor(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	cmd := exec.CommandContext(c.ctx, editor, path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = c.stdin, c.stdout, c.stderr

	return cmd.Run()
}

// validate reports whether data decodes into statements that may appear
// at the top level of a stylesheet.
func validate(ctx context.Context, data []byte) error {
	root, err := lang.ParseYAML(ctx, data, "<edit>")
	if err != nil {
		return err
	}

	return lang.CheckNesting(root)
}

// uncomment removes full-line YAML comments from data.
func uncomment(data []byte) []byte {
	var out []byte

	for line := range bytes.Lines(data) {
		if !bytes.HasPrefix(bytes.TrimSpace(line), []byte("#")) {
			out = append(out, line...)
		}
	}

	return out
}
