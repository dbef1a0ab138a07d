// Package cli contains the command line interface for sassy.
//
// # Usage
//
//	sassy [flags] <command> [args]
//
// With no command, the arguments are compiled:
//
//	sassy -I vendor/styles site.yaml > site.css
//
// # Commands
//
//   - compile: compile a stylesheet to CSS (default)
//   - gen: generate a program from a stylesheet
//   - run: run a generated program, optionally failing when stale
//   - ast: print the decoded stylesheet as YAML, JSON or a tree
//   - repl: start an interactive session
//   - init: write the current flag values to the configuration file
//
// # Load Paths
//
// Imports are resolved relative to the importing file, then in each -I
// directory, then in each directory listed in SASSY_PATH.
//
// # Configuration
//
// Flag defaults are read from two files in the user configuration
// directory (for example ~/.config/sassy): "config" in YAML and
// "config.json". Keys are flag names:
//
//	log-level: debug
//	load-path: [vendor/styles, shared]
//	max-depth: 50
//
// Command-line flags override config file values.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o sassy .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default:
//     ~/.cache/sassy/pprof)
package cli
