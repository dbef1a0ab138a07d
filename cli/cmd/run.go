package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

// Exec runs a program written by the gen command and prints the CSS it
// produces.
type Exec struct {
	Output     string `default:"-"     help:"Output file or '-' for stdout"                            short:"o"`
	CheckStale bool   `default:"false" help:"Fail if any input changed since the program was generated" negatable:""`

	Program string `arg:"" default:"-" help:"Program file or '-' for stdin" name:"program"`
}

// Run executes the run command.
func (x *Exec) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	c := compilerFrom(ctx)
	opts := []lang.Option{
		lang.WithLogger(log.Default()),
		lang.WithMaxDepth(c.MaxDepth),
		lang.WithMaxIterations(c.MaxIterations),
	}

	file := os.Stdin
	if x.Program != stdio {
		if file, err = os.Open(x.Program); err != nil {
			return commandError("run", lang.ErrReadInput.Wrap(err).
				With(slog.String("file", x.Program)))
		}
		defer file.Close()
	}

	prog, err := lang.ReadProgram(ctx, file, opts...)
	if err != nil {
		return commandError("run", err)
	}

	if x.CheckStale {
		stale, err := prog.Stale(ctx)
		if err != nil {
			return commandError("run", err)
		}

		if stale {
			return commandError("run",
				ErrStaleProgram.With(slog.String("entry", prog.Path())))
		}
	}

	sheet, err := prog.Run(ctx, opts...)
	if err != nil {
		return commandError("run", err)
	}

	return writeOutput(x.Output, lang.FormatCSS(sheet))
}
