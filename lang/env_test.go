package lang

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnvLookup(t *testing.T) {
	env := NewEnv()
	env.DeclareVar(RootScope, "$x").Value = "root"

	inner := env.Push(RootScope)
	env.DeclareVar(inner, "$x").Value = "inner"

	if got := env.LookupVar(inner, "x").Value; got != "inner" {
		t.Errorf("LookupVar(inner) = %v, want inner", got)
	}

	if got := env.LookupVar(RootScope, "$x").Value; got != "root" {
		t.Errorf("LookupVar(root) = %v, want root", got)
	}

	if env.LookupVar(inner, "$missing") != nil {
		t.Error("LookupVar() found an undeclared variable")
	}

	// Variables and functions live in separate namespaces.
	env.DeclareFn(RootScope, "x")

	if env.LookupFn(inner, "x") == nil {
		t.Error("LookupFn() did not find x")
	}

	if got := env.LookupVar(inner, "x").Value; got != "inner" {
		t.Errorf("declaring function x changed variable x to %v", got)
	}
}

func TestEnvNames(t *testing.T) {
	env := NewEnv()
	env.Assign(RootScope, "$font_size", 12, false)

	if slot := env.LookupVar(RootScope, "$font-size"); slot == nil || slot.Value != 12 {
		t.Errorf("LookupVar($font-size) = %v, want the $font_size binding", slot)
	}

	env.DeclareMixin(RootScope, "m")
	env.DeclareFn(RootScope, "f")
	env.DeclareVar(RootScope, "$unset")

	vars, fns, mixins := env.Names(env.Push(RootScope))

	if diff := cmp.Diff([]string{"$font-size"}, vars); diff != "" {
		t.Errorf("vars mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"f"}, fns); diff != "" {
		t.Errorf("fns mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"m"}, mixins); diff != "" {
		t.Errorf("mixins mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvAssign(t *testing.T) {
	tests := []struct {
		name      string
		global    bool
		declared  bool // $v exists at root before the assignment
		wantRoot  any
		wantLocal bool
	}{
		{name: "new binding is local", wantRoot: nil, wantLocal: true},
		{name: "existing binding is written", declared: true, wantRoot: 2},
		{name: "global creates at root", global: true, wantRoot: 2},
		{name: "global overwrites root", global: true, declared: true, wantRoot: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := NewEnv()
			if tt.declared {
				env.DeclareVar(RootScope, "$v").Value = 1
			}

			inner := env.Push(env.Push(RootScope))
			env.Assign(inner, "$v", 2, tt.global)

			var root any
			if slot := env.lookupLocal(RootScope, "v"); slot != nil {
				root = slot.Value
			}

			if root != tt.wantRoot {
				t.Errorf("root $v = %v, want %v", root, tt.wantRoot)
			}

			if local := env.lookupLocal(inner, "v") != nil; local != tt.wantLocal {
				t.Errorf("local binding = %v, want %v", local, tt.wantLocal)
			}

			if got := env.LookupVar(inner, "$v").Value; got != 2 {
				t.Errorf("LookupVar() = %v, want 2", got)
			}
		})
	}
}

func TestEnvAssignGuarded(t *testing.T) {
	tests := []struct {
		name    string
		initial any // value of an existing binding; Unset when declared only
		exists  bool
		want    any
		written bool
	}{
		{name: "no binding", want: 2, written: true},
		{name: "unset binding", exists: true, initial: Unset, want: 2, written: true},
		{name: "null binding", exists: true, initial: nil, want: 2, written: true},
		{name: "set binding", exists: true, initial: 1, want: 1},
		{name: "false is set", exists: true, initial: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := NewEnv()
			if tt.exists {
				env.DeclareVar(RootScope, "$v").Value = tt.initial
			}

			inner := env.Push(RootScope)
			calls := 0

			written, err := env.AssignGuarded(inner, "$v", false, func() (any, error) {
				calls++

				return 2, nil
			})
			if err != nil {
				t.Fatalf("AssignGuarded() error = %v", err)
			}

			if written != tt.written {
				t.Errorf("AssignGuarded() = %v, want %v", written, tt.written)
			}

			if want := map[bool]int{true: 1, false: 0}[tt.written]; calls != want {
				t.Errorf("value computed %d times, want %d", calls, want)
			}

			if got := env.LookupVar(inner, "$v").Value; got != tt.want {
				t.Errorf("$v = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("error", func(t *testing.T) {
		env := NewEnv()
		boom := errors.New("boom")

		_, err := env.AssignGuarded(RootScope, "$v", false, func() (any, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("AssignGuarded() error = %v, want %v", err, boom)
		}

		if env.LookupVar(RootScope, "$v") != nil {
			t.Error("failed assignment created a binding")
		}
	})
}

func TestEnvScopeLifetime(t *testing.T) {
	env := NewEnv()

	a := env.Push(RootScope)
	env.DeclareVar(a, "$tmp").Value = 1
	env.Pop(a)

	b := env.Push(RootScope)
	if env.LookupVar(b, "$tmp") != nil {
		t.Error("binding outlived its scope")
	}

	if got, want := env.Depth(), 2; got != want {
		t.Errorf("Depth() = %d, want %d", got, want)
	}

	env.Pop(RootScope)

	if got, want := env.Depth(), 2; got != want {
		t.Errorf("Pop(RootScope) changed Depth() to %d", got)
	}
}

func TestEnvUniqueIdent(t *testing.T) {
	env := NewEnv()
	seen := make(map[string]bool)

	// Sibling scopes at the same depth share the generator.
	for range 3 {
		s := env.Push(RootScope)

		for range 3 {
			id := env.UniqueIdent("prop")
			if seen[id] {
				t.Fatalf("UniqueIdent() returned %q twice", id)
			}

			seen[id] = true
		}

		env.Pop(s)
	}
}
