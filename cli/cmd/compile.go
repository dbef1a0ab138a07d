package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
)

// Backend names accepted by --backend.
const (
	backendEval    = "eval"
	backendProgram = "program"
)

// Compile compiles a stylesheet to CSS.
type Compile struct {
	Output  string `default:"-"    help:"Output file or '-' for stdout"                             short:"o"`
	Backend string `default:"eval" enum:"eval,program" help:"Evaluate the tree directly or through a generated program"`

	Source string `arg:"" help:"Entry stylesheet (YAML or JSON)" name:"source" type:"existingfile"`
}

// Run executes the compile command.
func (c *Compile) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	name, opts := compilerFrom(ctx).options(c.Source)

	var sheet *lang.Stylesheet

	switch c.Backend {
	case backendProgram:
		text, err := lang.GenerateFile(ctx, name, opts...)
		if err != nil {
			return commandError("compile", err)
		}

		prog, err := lang.CompileProgram(ctx, text, opts...)
		if err != nil {
			return commandError("compile", err)
		}

		sheet, err = prog.Run(ctx, opts...)
		if err != nil {
			return commandError("compile", err)
		}

	default:
		sheet, err = lang.CompileFile(ctx, name, opts...)
		if err != nil {
			return commandError("compile", err)
		}
	}

	log.DebugContext(ctx, "compiled stylesheet",
		slog.String("source", c.Source),
		slog.String("backend", c.Backend),
		slog.Int("blocks", len(sheet.Blocks)),
	)

	return writeOutput(c.Output, lang.FormatCSS(sheet))
}

// writeOutput writes text to the named output.
func writeOutput(name, text string) (err error) {
	w, closer, err := output(name)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = ErrWriteOutput.With(slog.String("file", name)).Wrap(cerr)
		}
	}()

	if _, err := io.WriteString(w, text); err != nil {
		return ErrWriteOutput.With(slog.String("file", name)).Wrap(err)
	}

	return nil
}
