package cli

import (
	"testing"

	"github.com/ardnew/sassy/log"
)

func TestLogScan(t *testing.T) {
	t.Cleanup(func() { log.Config(log.WithPretty(true), log.WithCaller(false)) })

	tests := []struct {
		name   string
		args   []string
		pretty bool
		caller bool
	}{
		{"none", []string{"compile", "main.yaml"}, true, false},
		{"enable", []string{"--log-caller", "compile"}, true, true},
		{"negated", []string{"compile", "--no-log-pretty"}, false, false},
		{"assigned", []string{"--log-pretty=false", "--log-caller=true"}, false, true},
		{"negated assigned", []string{"--no-log-caller=false"}, true, true},
		{"malformed", []string{"--log-caller=maybe"}, true, false},
		{"other flags", []string{"--pretty", "--no-caller", "--max-depth", "3"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := logConfig{Pretty: true}
			f.scan(tt.args)

			if f.Pretty != tt.pretty || f.Caller != tt.caller {
				t.Errorf("scan(%q) pretty = %v, caller = %v, want %v, %v",
					tt.args, f.Pretty, f.Caller, tt.pretty, tt.caller)
			}
		})
	}
}

func TestLogScanLevel(t *testing.T) {
	t.Cleanup(func() { log.Config(log.WithLevel(log.DefaultLevel), log.WithFormat(log.DefaultFormat)) })

	var f logConfig

	f.scan([]string{"--log-level", "debug", "--log-format=json", "compile"})

	if f.Level != "debug" || f.Format != "json" {
		t.Errorf("scan() level = %q, format = %q, want debug, json", f.Level, f.Format)
	}

	f = logConfig{Level: "info"}
	f.scan([]string{"--no-log-level", "debug"})

	if f.Level != "info" {
		t.Errorf("scan(--no-log-level) level = %q, want info", f.Level)
	}
}
