package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/ardnew/sassy/lang"
)

func TestAST(t *testing.T) {
	dir, c := project(t)
	ctx := WithCompiler(t.Context(), c)

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			out := filepath.Join(dir, "ast."+format)

			cmd := &AST{Format: format, Output: out, Source: filepath.Join(dir, "src", "main.yaml")}
			if err := cmd.Run(ctx); err != nil {
				t.Fatalf("AST.Run() error = %v", err)
			}

			// JSON is a subset of YAML, so both forms decode back.
			root, err := lang.ParseYAML(t.Context(), []byte(readFile(t, out)), out)
			if err != nil {
				t.Fatalf("ParseYAML() error = %v", err)
			}

			var kinds []lang.Kind
			for _, n := range root.Children {
				kinds = append(kinds, n.Kind)
			}

			if len(kinds) != 2 || kinds[0] != lang.KindImport || kinds[1] != lang.KindRule {
				t.Errorf("decoded kinds = %v, want [import rule]", kinds)
			}
		})
	}

	t.Run("tree", func(t *testing.T) {
		out := filepath.Join(dir, "ast.txt")

		cmd := &AST{Format: "tree", Output: out, Source: filepath.Join(dir, "src", "main.yaml")}
		if err := cmd.Run(ctx); err != nil {
			t.Fatalf("AST.Run() error = %v", err)
		}

		text := ansi.Strip(readFile(t, out))
		for _, want := range []string{"root", "import", "rule .a", "prop color"} {
			if !strings.Contains(text, want) {
				t.Errorf("tree output missing %q:\n%s", want, text)
			}
		}
	})
}

func TestFormatASTUnknown(t *testing.T) {
	if _, err := formatAST(lang.NewRoot("x.yaml"), "toml"); !errors.Is(err, ErrFormat) {
		t.Errorf("formatAST() error = %v, want %v", err, ErrFormat)
	}
}
