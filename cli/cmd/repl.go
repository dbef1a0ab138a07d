package cmd

import (
	"context"

	"github.com/ardnew/sassy/cli/cmd/repl"
	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

// Repl starts an interactive session over a stylesheet.
type Repl struct {
	Source string `arg:"" help:"Stylesheet to load before the session starts" name:"source" optional:"" type:"existingfile"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	cacheDir := ""
	if ktx := kongContextFrom(ctx); ktx != nil {
		cacheDir = ktx.Model.Vars()[CacheIdentifier]
	}

	c := compilerFrom(ctx)

	var (
		name string
		opts []lang.Option
	)

	if r.Source != "" {
		name, opts = c.options(r.Source)
	} else {
		_, opts = c.options(".")
	}

	return commandError("repl", repl.Run(ctx, name, cacheDir, log.Default(), opts...))
}
