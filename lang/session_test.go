package lang

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSession(t *testing.T) {
	root, err := ParseYAML(t.Context(), []byte(`
- var: $a
  value: "2"
- function: double
  params: [$x]
  children:
    - return: $x * 2
- mixin: tint
  params: [$c]
  children:
    - prop: color
      value: "#{$c}"
`), "session.yaml")
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	s, err := NewSession(t.Context(), root)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	got, err := s.Eval("double($a) + 1")
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	if got != 5 {
		t.Errorf("Eval() = %#v, want 5", got)
	}

	if _, err := s.Eval("$missing"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Eval($missing) error = %v, want %v", err, ErrUnresolved)
	}

	err = s.Exec(t.Context(), []byte(`
- var: $b
  value: "#{$a + 1}"
- rule: .x
  children:
    - include: tint
      args: [red]
`))
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	if got, err := s.Eval("$b"); err != nil || got != 3 {
		t.Errorf("Eval($b) = %#v, %v, want 3", got, err)
	}

	vars, fns, mixins := s.Names()

	if diff := cmp.Diff([]string{"$a", "$b"}, vars); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"double"}, fns); diff != "" {
		t.Errorf("fns mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"tint"}, mixins); diff != "" {
		t.Errorf("mixins mismatch (-want +got):\n%s", diff)
	}

	if n := len(s.Tree().Children); n != 1 {
		t.Errorf("Tree() has %d children, want 1", n)
	}

	css, err := s.CSS()
	if err != nil {
		t.Fatalf("CSS() error = %v", err)
	}

	if want := ".x {\n  color: red;\n}\n"; css != want {
		t.Errorf("CSS() = %q, want %q", css, want)
	}

	// The output can be rendered again after more statements.
	if err := s.Exec(t.Context(), []byte("- rule: .y\n  children:\n    - include: tint\n      args: [blue]\n")); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	css, err = s.CSS()
	if err != nil {
		t.Fatalf("CSS() error = %v", err)
	}

	if want := ".x {\n  color: red;\n}\n\n.y {\n  color: blue;\n}\n"; css != want {
		t.Errorf("CSS() = %q, want %q", css, want)
	}

	if err := s.Exec(t.Context(), []byte("- prop: color\n  value: red\n")); !errors.Is(err, ErrStructure) {
		t.Errorf("Exec(top-level prop) error = %v, want %v", err, ErrStructure)
	}
}

func TestSessionErrors(t *testing.T) {
	if _, err := NewSession(t.Context(), &Node{Kind: KindRule}); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("NewSession(rule) error = %v, want %v", err, ErrInvalidNode)
	}

	root, err := ParseYAML(t.Context(), []byte("- error: stop\n"), "stop.yaml")
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	if _, err := NewSession(t.Context(), root); !errors.Is(err, ErrUser) {
		t.Errorf("NewSession() error = %v, want %v", err, ErrUser)
	}
}
