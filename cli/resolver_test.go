package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want config
	}{
		{
			name: "flat",
			doc:  "log-level: debug\nforce: true\n",
			want: config{"log-level": "debug", "force": true},
		},
		{
			name: "nested",
			doc:  "log:\n  level: warn\n  pretty: false\n",
			want: config{"log-level": "warn", "log-pretty": false},
		},
		{
			name: "underscores",
			doc:  "max_depth: 7\nlog:\n  time_layout: Kitchen\n",
			want: config{"max-depth": "7", "log-time-layout": "Kitchen"},
		},
		{
			name: "lists",
			doc:  "load-path:\n  - lib\n  - vendor/styles\n",
			want: config{"load-path": "lib,vendor/styles"},
		},
		{
			name: "numbers",
			doc:  "max-iterations: 500\nratio: 1.5\n",
			want: config{"max-iterations": "500", "ratio": "1.5"},
		},
		{
			name: "empty",
			doc:  "",
			want: config{},
		},
		{
			name: "invalid",
			doc:  "load-path: [lib\n",
			want: config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := resolve(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, r); diff != "" {
				t.Errorf("resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigResolve(t *testing.T) {
	c := config{"log-level": "debug"}

	got, err := c.Resolve(nil, nil, &kong.Flag{Value: &kong.Value{Name: "log-level"}})
	if err != nil || got != "debug" {
		t.Errorf("Resolve(log-level) = %v, %v, want debug", got, err)
	}

	got, err = c.Resolve(nil, nil, &kong.Flag{Value: &kong.Value{Name: "log-format"}})
	if err != nil || got != nil {
		t.Errorf("Resolve(log-format) = %v, %v, want nil", got, err)
	}
}

func TestResolveFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseConfig)

	doc := "max_depth: 7\nload-path: [lib, vendor]\nnested:\n  name: from-config\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	var flags struct {
		MaxDepth int      `default:"100"`
		LoadPath []string `name:"load-path"`
		Nested   struct {
			Name string `default:"default"`
		} `embed:"" prefix:"nested-"`
	}

	parser, err := kong.New(&flags, kong.Configuration(resolve, path))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}

	if _, err := parser.Parse([]string{"--max-depth=9"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if flags.MaxDepth != 9 {
		t.Errorf("MaxDepth = %d, want command-line value 9", flags.MaxDepth)
	}

	if diff := cmp.Diff([]string{"lib", "vendor"}, flags.LoadPath); diff != "" {
		t.Errorf("LoadPath mismatch (-want +got):\n%s", diff)
	}

	if flags.Nested.Name != "from-config" {
		t.Errorf("Nested.Name = %q, want from-config", flags.Nested.Name)
	}
}
