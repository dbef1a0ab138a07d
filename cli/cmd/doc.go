// Package cmd implements the sassy subcommands.
//
// Commands that load stylesheets share the [Compiler] flags, which the CLI
// stores in the context with [WithCompiler]. The entry stylesheet's own
// directory is searched for imports first, then each -I directory, then
// each directory listed in SASSY_PATH.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the YAML configuration file.
	ConfigIdentifier = "config"
)
