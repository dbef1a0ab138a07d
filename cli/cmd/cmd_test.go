package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/pkg"
)

const (
	mainYAML = `
- import: [base]
- rule: .a
  children:
    - prop: color
      value: "#{$color}"
`
	baseYAML = "- var: $color\n  value: red\n"
	wantCSS  = ".a {\n  color: red;\n}\n"
)

// writeFiles creates files under a new temporary directory and returns
// the directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

// project writes a stylesheet whose import is found only on the load
// path, and returns the directory and the compiler flags to build it.
func project(t *testing.T) (string, Compiler) {
	t.Helper()
	t.Setenv(pkg.PathEnv, "")

	dir := writeFiles(t, map[string]string{
		"src/main.yaml":  mainYAML,
		"lib/_base.yaml": baseYAML,
	})

	return dir, Compiler{
		LoadPath:      []string{filepath.Join(dir, "lib")},
		MaxDepth:      lang.DefaultMaxDepth,
		MaxIterations: lang.DefaultMaxIterations,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	return string(data)
}

func TestLoadPaths(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a/.keep": "",
		"b/.keep": "",
		"c/.keep": "",
	})

	a, b, c := filepath.Join(dir, "a"), filepath.Join(dir, "b"), filepath.Join(dir, "c")
	missing := filepath.Join(dir, "missing")
	file := filepath.Join(dir, "a", ".keep")

	sep := string(os.PathListSeparator)
	t.Setenv(pkg.PathEnv, strings.Join([]string{b, missing, a, "", c, file}, sep))

	got := Compiler{LoadPath: []string{a, missing}}.LoadPaths()
	if diff := cmp.Diff([]string{a, b, c}, got); diff != "" {
		t.Errorf("LoadPaths() mismatch (-want +got):\n%s", diff)
	}

	t.Setenv(pkg.PathEnv, "")

	if got := (Compiler{}).LoadPaths(); len(got) != 0 {
		t.Errorf("LoadPaths() = %q, want none", got)
	}
}

func TestCompile(t *testing.T) {
	dir, c := project(t)
	ctx := WithCompiler(t.Context(), c)

	for _, backend := range []string{backendEval, backendProgram} {
		t.Run(backend, func(t *testing.T) {
			out := filepath.Join(dir, backend+".css")

			cmd := &Compile{
				Output:  out,
				Backend: backend,
				Source:  filepath.Join(dir, "src", "main.yaml"),
			}
			if err := cmd.Run(ctx); err != nil {
				t.Fatalf("Compile.Run() error = %v", err)
			}

			if diff := cmp.Diff(wantCSS, readFile(t, out)); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	dir, c := project(t)

	// Without the load path the import cannot be found.
	cmd := &Compile{
		Output:  filepath.Join(dir, "out.css"),
		Backend: backendEval,
		Source:  filepath.Join(dir, "src", "main.yaml"),
	}

	c.LoadPath = nil

	err := cmd.Run(WithCompiler(t.Context(), c))
	if !errors.Is(err, lang.ErrImportNotFound) {
		t.Fatalf("Compile.Run() error = %v, want %v", err, lang.ErrImportNotFound)
	}

	if !strings.Contains(err.Error(), "import not found") {
		t.Errorf("error = %q", err)
	}

	if _, err := os.Stat(cmd.Output); err == nil {
		t.Errorf("output %s written after a failed compile", cmd.Output)
	}
}

func TestGenRun(t *testing.T) {
	lang.ClearCache()

	dir, c := project(t)
	ctx := WithCompiler(t.Context(), c)

	prog := filepath.Join(dir, "site.prog")
	out := filepath.Join(dir, "site.css")

	gen := &Gen{Output: prog, Source: filepath.Join(dir, "src", "main.yaml")}
	if err := gen.Run(ctx); err != nil {
		t.Fatalf("Gen.Run() error = %v", err)
	}

	if text := readFile(t, prog); !strings.HasPrefix(text, "sassy 1\n") {
		t.Errorf("program starts with %q", text[:min(len(text), 20)])
	}

	run := &Exec{Output: out, CheckStale: true, Program: prog}
	if err := run.Run(ctx); err != nil {
		t.Fatalf("Exec.Run() error = %v", err)
	}

	if diff := cmp.Diff(wantCSS, readFile(t, out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	base := filepath.Join(dir, "lib", "_base.yaml")
	if err := os.WriteFile(base, []byte("- var: $color\n  value: blue\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := run.Run(ctx); !errors.Is(err, ErrStaleProgram) {
		t.Fatalf("Exec.Run() on stale program error = %v, want %v", err, ErrStaleProgram)
	}

	// The program still holds the content it was generated from.
	run.CheckStale = false
	if err := run.Run(ctx); err != nil {
		t.Fatalf("Exec.Run() error = %v", err)
	}

	if diff := cmp.Diff(wantCSS, readFile(t, out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMalformedProgram(t *testing.T) {
	lang.ClearCache()

	dir := writeFiles(t, map[string]string{"bad.prog": "not a program\n"})

	run := &Exec{Output: filepath.Join(dir, "out.css"), Program: filepath.Join(dir, "bad.prog")}
	if err := run.Run(t.Context()); !errors.Is(err, lang.ErrProgram) {
		t.Errorf("Exec.Run() error = %v, want %v", err, lang.ErrProgram)
	}

	run.Program = filepath.Join(dir, "missing.prog")
	if err := run.Run(t.Context()); !errors.Is(err, lang.ErrReadInput) {
		t.Errorf("Exec.Run() error = %v, want %v", err, lang.ErrReadInput)
	}
}

func TestOutputError(t *testing.T) {
	err := writeOutput(filepath.Join(t.TempDir(), "missing", "out.css"), "x")
	if !errors.Is(err, ErrWriteOutput) {
		t.Errorf("writeOutput() error = %v, want %v", err, ErrWriteOutput)
	}
}
