package lang

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

func TestCandidates(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{
			name: "a/b",
			want: []string{"a/b.yaml", "a/_b.yaml", "a/b.yml", "a/_b.yml", "a/b.json", "a/b"},
		},
		{name: "x.yaml", want: []string{"x.yaml", "_x.yaml"}},
		{name: "d/x.json", want: []string{"d/x.json", "d/_x.json"}},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, candidates(tt.name)); diff != "" {
			t.Errorf("candidates(%q) mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func TestDirImporter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml":     "- rule: .main\n",
		"_vars.yaml":    "- var: $a\n",
		"lib/_x.yaml":   "- rule: .x\n",
		"lib/y.yml":     "- rule: .y\n",
		"lib/_vars.yml": "- var: $b\n",
	})

	imp := NewDirImporter(dir)
	lib := filepath.Join(dir, "lib", "y.yml")

	tests := []struct {
		name, base string
		want       string
	}{
		{name: "main", want: filepath.Join(dir, "main.yaml")},
		{name: "vars", want: filepath.Join(dir, "_vars.yaml")},
		{name: "lib/x", want: filepath.Join(dir, "lib", "_x.yaml")},
		{name: "x", base: lib, want: filepath.Join(dir, "lib", "_x.yaml")},
		{name: "vars", base: lib, want: filepath.Join(dir, "lib", "_vars.yml")},
		{name: "main", base: lib, want: filepath.Join(dir, "main.yaml")},
		{name: filepath.Join(dir, "lib", "y.yml"), want: lib},
		{name: "missing"},
		{name: "lib"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := imp.Find(t.Context(), tt.name, tt.base)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}

			if tt.want == "" {
				if f != nil {
					t.Errorf("Find() = %q, want nil", f.Path)
				}

				return
			}

			if f == nil {
				t.Fatalf("Find() = nil, want %q", tt.want)
			}

			if f.Path != tt.want {
				t.Errorf("Find() path = %q, want %q", f.Path, tt.want)
			}

			if f.Importer != imp {
				t.Errorf("Find() importer = %v, want %v", f.Importer, imp)
			}

			data, err := imp.Load(t.Context(), f.Path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if string(data) != string(f.Data) {
				t.Errorf("Load() = %q, want %q", data, f.Data)
			}
		})
	}

	if _, err := imp.Load(t.Context(), filepath.Join(dir, "nope.yaml")); !errors.Is(err, ErrReadInput) {
		t.Errorf("Load(missing) error = %v, want %v", err, ErrReadInput)
	}
}

func TestArchiveImporter(t *testing.T) {
	imp := NewArchiveImporter("pkg", txtar.Parse([]byte(`
-- main.yaml --
- import: lib/a
-- lib/_a.yaml --
- import: b
-- lib/b.yaml --
- rule: .b
-- b.yaml --
- rule: .top
`)))

	if diff := cmp.Diff(
		[]string{"pkg:main.yaml", "pkg:lib/_a.yaml", "pkg:lib/b.yaml", "pkg:b.yaml"},
		imp.Files(),
	); diff != "" {
		t.Errorf("Files() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name, base, want string
	}{
		{name: "main", want: "pkg:main.yaml"},
		{name: "lib/a", base: "pkg:main.yaml", want: "pkg:lib/_a.yaml"},
		{name: "b", base: "pkg:lib/_a.yaml", want: "pkg:lib/b.yaml"},
		{name: "b", base: "pkg:main.yaml", want: "pkg:b.yaml"},
		{name: "b", base: "other:lib/_a.yaml", want: "pkg:b.yaml"},
		{name: "../b", base: "pkg:lib/_a.yaml", want: "pkg:b.yaml"},
		{name: "c", base: "pkg:main.yaml"},
	}

	for _, tt := range tests {
		f, err := imp.Find(t.Context(), tt.name, tt.base)
		if err != nil {
			t.Fatalf("Find(%q, %q) error = %v", tt.name, tt.base, err)
		}

		var got string
		if f != nil {
			got = f.Path
		}

		if got != tt.want {
			t.Errorf("Find(%q, %q) = %q, want %q", tt.name, tt.base, got, tt.want)
		}
	}

	data, err := imp.Load(t.Context(), "pkg:lib/b.yaml")
	if err != nil || string(data) != "- rule: .b\n" {
		t.Errorf("Load() = %q, %v", data, err)
	}

	if _, err := imp.Load(t.Context(), "other:lib/b.yaml"); !errors.Is(err, ErrReadInput) {
		t.Errorf("Load(other) error = %v, want %v", err, ErrReadInput)
	}
}

type prefixImporter struct {
	Prefix string `yaml:"prefix"`
}

func (*prefixImporter) Kind() string { return "prefix" }

func (p *prefixImporter) Find(context.Context, string, string) (*File, error) {
	return nil, nil
}

func (p *prefixImporter) Load(context.Context, string) ([]byte, error) {
	return []byte(p.Prefix), nil
}

func TestImporterEnvelope(t *testing.T) {
	RegisterImporter("prefix", func() Importer { return &prefixImporter{} })

	archive := NewArchiveImporter("pkg", &txtar.Archive{Files: []txtar.File{
		{Name: "a.yaml", Data: []byte("- rule: .a\n")},
		{Name: "b.yaml", Data: []byte("- rule: .b\n")},
	}})

	importers := []Importer{
		&DirImporter{Root: "/srv/styles"},
		archive,
		&prefixImporter{Prefix: "p"},
	}

	for _, imp := range importers {
		t.Run(imp.Kind(), func(t *testing.T) {
			data, err := MarshalImporter(imp)
			if err != nil {
				t.Fatalf("MarshalImporter() error = %v", err)
			}

			got, err := UnmarshalImporter(data)
			if err != nil {
				t.Fatalf("UnmarshalImporter() error = %v\n%s", err, data)
			}

			if got.Kind() != imp.Kind() {
				t.Fatalf("Kind() = %q, want %q", got.Kind(), imp.Kind())
			}

			switch want := imp.(type) {
			case *ArchiveImporter:
				a := got.(*ArchiveImporter)
				if a.Name != want.Name {
					t.Errorf("Name = %q, want %q", a.Name, want.Name)
				}

				if diff := cmp.Diff(want.Files(), a.Files()); diff != "" {
					t.Errorf("Files() mismatch (-want +got):\n%s", diff)
				}

				f, err := a.Find(t.Context(), "b", "")
				if err != nil || f == nil || string(f.Data) != "- rule: .b\n" {
					t.Errorf("Find() = %v, %v", f, err)
				}

			default:
				if diff := cmp.Diff(imp, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}

	if _, err := MarshalImporter(nil); !errors.Is(err, ErrInvalidImporter) {
		t.Errorf("MarshalImporter(nil) error = %v, want %v", err, ErrInvalidImporter)
	}

	if _, err := UnmarshalImporter([]byte("kind: ftp\nspec: {}\n")); !errors.Is(err, ErrInvalidImporter) {
		t.Errorf("UnmarshalImporter(ftp) error = %v, want %v", err, ErrInvalidImporter)
	}

	if _, err := UnmarshalImporter([]byte("kind: [\n")); !errors.Is(err, ErrInvalidImporter) {
		t.Errorf("UnmarshalImporter(malformed) error = %v, want %v", err, ErrInvalidImporter)
	}
}
