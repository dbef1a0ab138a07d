package cmd

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

// Gen compiles a stylesheet into a program that can be run later with
// the run command.
type Gen struct {
	Output string `default:"-" help:"Output file or '-' for stdout" short:"o"`

	Source string `arg:"" help:"Entry stylesheet (YAML or JSON)" name:"source" type:"existingfile"`
}

// Run executes the gen command.
func (g *Gen) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	name, opts := compilerFrom(ctx).options(g.Source)

	text, err := lang.GenerateFile(ctx, name, opts...)
	if err != nil {
		return commandError("gen", err)
	}

	// Parsing validates the output and warms the cache for a run in the
	// same process.
	prog, err := lang.CompileProgram(ctx, text, opts...)
	if err != nil {
		return commandError("gen", err)
	}

	log.InfoContext(ctx, "generated program",
		slog.String("entry", prog.Path()),
		slog.Int("imports", len(prog.Imports())),
		slog.String("size", humanize.Bytes(uint64(len(text)))),
	)

	return writeOutput(g.Output, text)
}
