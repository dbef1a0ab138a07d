package lang

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGenerateText(t *testing.T) {
	root, err := ParseYAML(t.Context(), []byte(`- var: $a
  value: "1"
- rule: .a
  children:
    - prop: x
      value: "#{$a}"
- mixin: m
  params: [$c, "$d: 2"]
  children:
    - content:
- include: m
  args: ["3"]
  kwargs: {$d: "4"}
- if: $a > 1
  children:
    - debug: big
  else:
    - warn: small
`), "main.yaml")
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	got, err := Generate(t.Context(), root)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := `sassy 1
root "main.yaml" - -
  @1:3 var "$a" "1"
  @3:3 rule ".a"
    @5:7 prop "x" "#{$a}"
    end
  end
  @7:3 mixin "m"
    param "$c"
    param "$d" "2"
    @10:7 content
  end
  @11:3 include "m"
    arg "3"
    kwarg "$d" "4"
  end
  @14:3 if "$a > 1"
    @16:7 debug "big"
  else
    @18:7 warn "small"
  end
end
`

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}

	prog, err := ParseProgram(got)
	if err != nil {
		t.Fatalf("ParseProgram() error = %v", err)
	}

	if prog.String() != got || prog.Path() != "main.yaml" || len(prog.Imports()) != 0 {
		t.Errorf("Program = %q, %q, %v", prog.String(), prog.Path(), prog.Imports())
	}
}

func TestParseProgramErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "empty", text: "", want: ErrProgram},
		{name: "bad magic", text: "sassy 2\n", want: ErrProgram},
		{name: "no root", text: "sassy 1\n", want: ErrProgram},
		{name: "unterminated root", text: "sassy 1\nroot \"a\" - -\n", want: ErrProgram},
		{name: "duplicate root", text: "sassy 1\nroot \"a\" - -\nend\nroot \"a\" - -\nend\n", want: ErrProgram},
		{name: "unknown top level", text: "sassy 1\nbogus\n", want: ErrProgram},
		{name: "undeclared importer", text: "sassy 1\nroot \"a\" importer-1 -\nend\n", want: ErrProgram},
		{name: "bad fingerprint", text: "sassy 1\nroot \"a\" - xyz\nend\n", want: ErrProgram},
		{name: "bad importer", text: "sassy 1\nimporter importer-1 \"kind: ftp\"\n", want: ErrInvalidImporter},
		{name: "unknown instruction", text: "sassy 1\nroot \"a\" - -\n  jump\nend\n", want: ErrProgram},
		{name: "missing operand", text: "sassy 1\nroot \"a\" - -\n  prop \"x\"\nend\n", want: ErrProgram},
		{name: "bad position", text: "sassy 1\nroot \"a\" - -\n  @x:1 content\nend\n", want: ErrProgram},
		{name: "unterminated string", text: "sassy 1\nroot \"a\" - -\n  comment \"x\nend\n", want: ErrProgram},
		{name: "undefined unit", text: "sassy 1\nroot \"a\" - -\n  call import-9\nend\n", want: ErrProgram},
		{
			name: "param outside header",
			text: "sassy 1\nroot \"a\" - -\n  rule \".a\"\n    param \"$x\"\n  end\nend\n",
			want: ErrProgram,
		},
		{
			name: "late param",
			text: "sassy 1\nroot \"a\" - -\n  mixin \"m\"\n    content\n    param \"$x\"\n  end\nend\n",
			want: ErrProgram,
		},
		{name: "stray arg", text: "sassy 1\nroot \"a\" - -\n  arg \"1\"\nend\n", want: ErrProgram},
		{
			name: "bad expression",
			text: "sassy 1\nroot \"a\" - -\n  function \"f\"\n    return \"1 +\"\n  end\nend\n",
			want: ErrExprCompile,
		},
		{
			name: "bad interpolation",
			text: "sassy 1\nroot \"a\" - -\n  comment \"#{x\"\nend\n",
			want: ErrExprCompile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProgram(tt.text); !errors.Is(err, tt.want) {
				t.Errorf("ParseProgram() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseProgramComments(t *testing.T) {
	prog, err := ParseProgram("# generated\nsassy 1\n\nroot \"a\" - -\n  # rule follows\n  @1:1 rule \".a\"\n    prop \"x\" \"1\"\n    end\n  end\nend\n")
	if err != nil {
		t.Fatalf("ParseProgram() error = %v", err)
	}

	sheet, err := prog.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got, want := FormatCSS(sheet), ".a {\n  x: 1;\n}\n"; got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestCompileProgramCache(t *testing.T) {
	ClearCache()
	t.Cleanup(ClearCache)

	const text = "sassy 1\nroot \"cache\" - -\n  rule \".a\"\n    prop \"x\" \"1\"\n    end\n  end\nend\n"

	first, err := CompileProgram(t.Context(), text)
	if err != nil {
		t.Fatalf("CompileProgram() error = %v", err)
	}

	second, err := CompileProgram(t.Context(), text)
	if err != nil || second != first {
		t.Errorf("CompileProgram() = %p, %v, want cached %p", second, err, first)
	}

	read, err := ReadProgram(t.Context(), strings.NewReader(text))
	if err != nil || read != first {
		t.Errorf("ReadProgram() = %p, %v, want cached %p", read, err, first)
	}

	ClearCache()

	fresh, err := CompileProgram(t.Context(), text)
	if err != nil || fresh == first {
		t.Errorf("CompileProgram() after ClearCache = %p, %v", fresh, err)
	}

	for range 2 {
		if _, err := CompileProgram(t.Context(), "not a program"); !errors.Is(err, ErrProgram) {
			t.Errorf("CompileProgram(invalid) error = %v, want %v", err, ErrProgram)
		}
	}
}

func TestProgramStale(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml":  "- import: vars\n- rule: .a\n  children:\n    - prop: color\n      value: \"#{$c}\"\n",
		"_vars.yaml": "- var: $c\n  value: red\n",
	})

	text, err := GenerateFile(t.Context(), "main", WithLoadPaths(NewDirImporter(dir)))
	if err != nil {
		t.Fatalf("GenerateFile() error = %v", err)
	}

	prog, err := ParseProgram(text)
	if err != nil {
		t.Fatalf("ParseProgram() error = %v\n%s", err, text)
	}

	if got, want := prog.Path(), filepath.Join(dir, "main.yaml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	if diff := cmp.Diff([]string{filepath.Join(dir, "_vars.yaml")}, prog.Imports()); diff != "" {
		t.Errorf("Imports() mismatch (-want +got):\n%s", diff)
	}

	if stale, err := prog.Stale(t.Context()); err != nil || stale {
		t.Fatalf("Stale() = %v, %v, want false", stale, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "_vars.yaml"), []byte("- var: $c\n  value: blue\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if stale, err := prog.Stale(t.Context()); err != nil || !stale {
		t.Errorf("Stale() = %v, %v, want true", stale, err)
	}

	// The program keeps the content it was generated from.
	sheet, err := prog.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got, want := FormatCSS(sheet), ".a {\n  color: red;\n}\n"; got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}

	if err := os.Remove(filepath.Join(dir, "main.yaml")); err != nil {
		t.Fatal(err)
	}

	if _, err := prog.Stale(t.Context()); !errors.Is(err, ErrReadInput) {
		t.Errorf("Stale() error = %v, want %v", err, ErrReadInput)
	}
}

func TestProgramConcurrentRuns(t *testing.T) {
	root, err := ParseYAML(t.Context(), []byte(`
- function: total
  params: [$n]
  children:
    - if: $n <= 0
      children:
        - return: "0"
    - return: $n + total($n - 1)
- for: $i
  from: "1"
  through: "5"
  children:
    - rule: ".c-#{$i}"
      children:
        - prop: width
          value: "#{total($i)}px"
`), "sum.yaml")
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	text, err := Generate(t.Context(), root)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	prog, err := ParseProgram(text)
	if err != nil {
		t.Fatalf("ParseProgram() error = %v", err)
	}

	sheet, err := Compile(t.Context(), root)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := FormatCSS(sheet)

	var wg sync.WaitGroup

	for range 8 {
		wg.Go(func() {
			got, err := prog.Run(t.Context())
			if err != nil {
				t.Errorf("Run() error = %v", err)

				return
			}

			if diff := cmp.Diff(want, FormatCSS(got)); diff != "" {
				t.Errorf("Run() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	wg.Wait()
}
