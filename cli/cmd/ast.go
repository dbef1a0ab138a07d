package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ardnew/sassy/lang"
)

// AST prints the decoded document of a stylesheet without evaluating it.
type AST struct {
	Format string `default:"yaml" enum:"yaml,json,tree" help:"Output format" short:"f"`
	Output string `default:"-"    help:"Output file or '-' for stdout" short:"o"`

	Source string `arg:"" help:"Stylesheet (YAML or JSON)" name:"source" type:"existingfile"`
}

// Run executes the ast command.
func (a *AST) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	name, opts := compilerFrom(ctx).options(a.Source)

	root, err := lang.LoadFile(ctx, name, opts...)
	if err != nil {
		return commandError("ast", err)
	}

	text, err := formatAST(root, a.Format)
	if err != nil {
		return commandError("ast", err)
	}

	return writeOutput(a.Output, text)
}

func formatAST(root *lang.Node, format string) (string, error) {
	switch format {
	case "yaml":
		data, err := lang.FormatYAML(root)

		return string(data), err

	case "json":
		data, err := lang.FormatJSON(root)

		return strings.TrimRight(string(data), "\n") + "\n", err

	case "tree":
		return lang.FormatTree(root) + "\n", nil
	}

	return "", ErrFormat.With(slog.String("format", format))
}
