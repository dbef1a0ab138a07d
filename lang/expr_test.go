package lang

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mapResolver resolves variables from a map and calls from funcs.
type mapResolver struct {
	vars  map[string]any
	funcs map[string]func(args []any) (any, error)
	calls []string
}

func (r *mapResolver) lookup(name string) (any, error) {
	v, ok := r.vars[name]
	if !ok {
		return nil, ErrUnresolved.Wrap(errors.New(name))
	}

	return v, nil
}

func (r *mapResolver) call(name string, args []any) (any, error) {
	r.calls = append(r.calls, name)

	if fn, ok := r.funcs[name]; ok {
		return fn(args)
	}

	return nil, ErrUnresolved.Wrap(errors.New(name))
}

func TestExprPatcher(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  any
		calls []string
	}{
		{name: "hyphenated variable", src: "$font-size + 1", want: 13},
		{name: "subtraction of variables", src: "$font-size - $gap", want: 8},
		{name: "subtraction of a literal", src: "$gap - 1", want: 3},
		{name: "bare words are strings", src: "sans-serif", want: "sans-serif"},
		{name: "null", src: "null", want: nil},
		{name: "user call", src: "double(2)", want: 4, calls: []string{"double"}},
		{
			name:  "hyphenated call",
			src:   "half-of(8)",
			want:  4,
			calls: []string{"half-of"},
		},
		{
			name:  "call colliding with a builtin",
			src:   "map-get({'a': 1}, 'a')",
			want:  1,
			calls: []string{"map-get"},
		},
		{name: "expr builtins stay available", src: "len([1, 2, 3])", want: 3},
		{name: "if selects a branch", src: "if(true, 'yes', 'no')", want: "yes"},
		{name: "if branch not taken is not evaluated", src: "if($gap > 1, 'yes', $nope)", want: "yes"},
		{name: "if on null", src: "if(null, nope(), $gap)", want: 4},
		{name: "if on zero", src: "if(0, 'a', 'b')", want: "a"},
		{
			name:  "if with other arities is a call",
			src:   "if(true, 1)",
			want:  1,
			calls: []string{"if"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mapResolver{
				vars: map[string]any{"$font-size": 12, "$gap": 4},
				funcs: map[string]func([]any) (any, error){
					"double":  func(a []any) (any, error) { return a[0].(int) * 2, nil },
					"half-of": func(a []any) (any, error) { return a[0].(int) / 2, nil },
					"if":      func(a []any) (any, error) { return a[1], nil },
					"map-get": func(a []any) (any, error) {
						return a[0].(map[string]any)[a[1].(string)], nil
					},
				},
			}

			p, err := newExprCache().compile(tt.src)
			if err != nil {
				t.Fatalf("compile(%q) error = %v", tt.src, err)
			}

			got, err := p.run(r)
			if err != nil {
				t.Fatalf("run(%q) error = %v", tt.src, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("run(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}

			if diff := cmp.Diff(tt.calls, r.calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExprErrors(t *testing.T) {
	c := newExprCache()

	if _, err := c.compile("  "); !errors.Is(err, ErrExprCompile) {
		t.Errorf("compile(empty) error = %v, want %v", err, ErrExprCompile)
	}

	if _, err := c.compile("1 +"); !errors.Is(err, ErrExprCompile) {
		t.Errorf("compile(1 +) error = %v, want %v", err, ErrExprCompile)
	}

	p, err := c.compile("$missing + 1")
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}

	if _, err := p.run(&mapResolver{}); !errors.Is(err, ErrUnresolved) {
		t.Errorf("run() error = %v, want %v", err, ErrUnresolved)
	}

	p, err = c.compile("nope(1)")
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}

	// Errors raised by calls surface through the expression VM.
	if _, err := p.run(&mapResolver{}); !errors.Is(err, ErrUnresolved) {
		t.Errorf("run() error = %v, want %v", err, ErrUnresolved)
	}

	again, err := c.compile("nope(1)")
	if err != nil || again != p {
		t.Errorf("compile() did not return the cached program")
	}
}

func TestInterpSegments(t *testing.T) {
	tests := []struct {
		in      Interp
		want    []segment
		wantErr bool
	}{
		{in: "plain", want: []segment{{text: "plain"}}},
		{in: "", want: []segment{{text: ""}}},
		{in: "#{$a}", want: []segment{{text: "$a", isExpr: true}}},
		{
			in: "a #{ $b } c",
			want: []segment{
				{text: "a "},
				{text: "$b", isExpr: true},
				{text: " c"},
			},
		},
		{
			in:   "#{{'k': '}'}}x",
			want: []segment{{text: "{'k': '}'}", isExpr: true}, {text: "x"}},
		},
		{in: "#{$a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, err := tt.in.segments()
			if (err != nil) != tt.wantErr {
				t.Fatalf("segments() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				if !errors.Is(err, ErrExprCompile) {
					t.Errorf("segments() error = %v, want %v", err, ErrExprCompile)
				}

				return
			}

			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(segment{})); diff != "" {
				t.Errorf("segments() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValues(t *testing.T) {
	t.Run("ParseLiteral", func(t *testing.T) {
		tests := map[string]any{
			"true":  true,
			"false": false,
			"null":  nil,
			"12":    12,
			"-3":    -3,
			"1.5":   1.5,
			".5":    0.5,
			"10px":  "10px",
			"red":   "red",
			"Inf":   "Inf",
			"NaN":   "NaN",
			"0x10":  "0x10",
			"1_000": "1_000",
		}

		for in, want := range tests {
			if got := ParseLiteral(in); got != want {
				t.Errorf("ParseLiteral(%q) = %#v, want %#v", in, got, want)
			}
		}
	})

	t.Run("ToCSS", func(t *testing.T) {
		tests := []struct {
			in   any
			want string
		}{
			{nil, ""},
			{Unset, ""},
			{"a", "a"},
			{true, "true"},
			{42, "42"},
			{1.0 / 3.0, "0.33333"},
			{2.5, "2.5"},
			{0.000001, "0"},
			{[]any{1, "b", nil}, "1, b"},
			{map[string]any{"b": 2, "a": 1}, "(a: 1, b: 2)"},
		}

		for _, tt := range tests {
			if got := ToCSS(tt.in); got != tt.want {
				t.Errorf("ToCSS(%#v) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("Truthy", func(t *testing.T) {
		for _, v := range []any{0, "", []any{}, "false"} {
			if !Truthy(v) {
				t.Errorf("Truthy(%#v) = false, want true", v)
			}
		}

		for _, v := range []any{nil, false, Unset} {
			if Truthy(v) {
				t.Errorf("Truthy(%#v) = true, want false", v)
			}
		}
	})
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name    string
		args    []any
		want    any
		wantErr error
	}{
		{name: "unquote", args: []any{`"a b"`}, want: "a b"},
		{name: "quote", args: []any{"a"}, want: `"a"`},
		{name: "percentage", args: []any{0.5}, want: "50%"},
		{name: "percentage", args: []any{"x"}, wantErr: ErrArgument},
		{name: "type-of", args: []any{[]any{}}, want: "list"},
		{name: "length", args: []any{"solo"}, want: 1},
		{name: "length", args: []any{map[string]any{"a": 1}}, want: 1},
		{name: "nth", args: []any{[]any{"a", "b"}, 1}, want: "a"},
		{name: "nth", args: []any{[]any{"a", "b"}, -1}, want: "b"},
		{name: "nth", args: []any{[]any{"a"}, 2}, wantErr: ErrArgument},
		{name: "nth", args: []any{map[string]any{"k": 1}, 1}, want: []any{"k", 1}},
		{name: "map-get", args: []any{map[string]any{"k": 1}, "k"}, want: 1},
		{name: "map-get", args: []any{"x", "k"}, wantErr: ErrArgument},
		{name: "map-keys", args: []any{map[string]any{"b": 1, "a": 2}}, want: []any{"a", "b"}},
		{name: "if", args: []any{nil, 1, 2}, want: 2},
		{name: "type_of", args: []any{1}, want: "number"},
		{name: "length", args: []any{}, wantErr: ErrArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := callBuiltin(NewEnv(), tt.name, tt.args)
			if !ok {
				t.Fatalf("callBuiltin(%q) not found", tt.name)
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("callBuiltin(%q) error = %v, want %v", tt.name, err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("callBuiltin(%q) error = %v", tt.name, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("callBuiltin(%q) mismatch (-want +got):\n%s", tt.name, diff)
			}
		})
	}

	if _, ok, _ := callBuiltin(NewEnv(), "no-such-builtin", nil); ok {
		t.Error("callBuiltin() found an unknown name")
	}
}
