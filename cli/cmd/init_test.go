package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// initContext parses args against a minimal CLI holding the compiler
// flags and the init command.
func initContext(t *testing.T, confPath string, args ...string) (*Init, *kong.Context) {
	t.Helper()

	var cli struct {
		Compiler `embed:""`

		Init Init `cmd:""`
	}

	parser, err := kong.New(&cli,
		kong.Vars{ConfigIdentifier: confPath},
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}

	return &cli.Init, ktx
}

func TestInitRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		existing bool
		wantErr  error
	}{
		{name: "create_new_config", args: []string{"init"}},
		{name: "overwrite_existing_with_force", args: []string{"init", "--force"}, existing: true},
		{name: "fail_without_force", args: []string{"init"}, existing: true, wantErr: ErrFileExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			confPath := filepath.Join(dir, "config")

			if tt.existing {
				if err := os.WriteFile(confPath, []byte("existing content"), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			args := append([]string{"-I", dir, "--max-depth", "7"}, tt.args...)
			cmd, ktx := initContext(t, confPath, args...)

			err := cmd.Run(WithContext(t.Context(), ktx))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrWriteConfig) {
					t.Fatalf("Init.Run() error = %v, want %v", err, tt.wantErr)
				}

				if got := readFile(t, confPath); got != "existing content" {
					t.Errorf("config overwritten: %q", got)
				}

				return
			}

			if err != nil {
				t.Fatalf("Init.Run() error = %v", err)
			}

			data := readFile(t, confPath)
			if !strings.HasPrefix(data, "# sassy configuration") {
				t.Errorf("config header missing:\n%s", data)
			}

			var conf map[string]any
			if err := yaml.Unmarshal([]byte(data), &conf); err != nil {
				t.Fatalf("yaml.Unmarshal() error = %v", err)
			}

			if got := conf["max-depth"]; got != "7" {
				t.Errorf("max-depth = %#v, want \"7\"", got)
			}

			if got, ok := conf["load-path"].([]any); !ok || len(got) != 1 || got[0] != dir {
				t.Errorf("load-path = %#v, want [%q]", conf["load-path"], dir)
			}

			if _, ok := conf["help"]; ok {
				t.Error("help flag written to config")
			}
		})
	}
}

func TestConfigValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{true, true},
		{"", nil},
		{"x", "x"},
		{42, "42"},
		{[]string{}, nil},
		{[]string{"a"}, []string{"a"}},
		{1.5, "1.5"},
	}

	for _, tt := range tests {
		got := configValue(tt.in)

		if s, ok := tt.want.([]string); ok {
			if g, ok := got.([]string); !ok || len(g) != len(s) || g[0] != s[0] {
				t.Errorf("configValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}

			continue
		}

		if got != tt.want {
			t.Errorf("configValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
