package lang

import (
	"context"
	"log/slog"
)

// Compile evaluates root, then flattens and extends the result.
func Compile(ctx context.Context, root *Node, opts ...Option) (*Stylesheet, error) {
	o := makeOptions(opts...)

	static, err := newEvaluator(ctx, o).evaluate(root)
	if err != nil {
		return nil, err
	}

	sheet, err := finish(static)
	if err != nil {
		return nil, err
	}

	o.logger.TraceContext(ctx, "compiled",
		slog.String("file", static.Source.File),
		slog.Int("blocks", len(sheet.Blocks)),
		slog.Int("extensions", len(sheet.Extensions)),
	)

	return sheet, nil
}

// CompileFile resolves name through the configured importers, parses it
// and compiles it. Imports relative to the file are resolved by the
// importer that found it.
func CompileFile(ctx context.Context, name string, opts ...Option) (*Stylesheet, error) {
	o := makeOptions(opts...)

	_, root, err := loadEntry(ctx, o, name)
	if err != nil {
		return nil, err
	}

	static, err := newEvaluator(ctx, o).evaluate(root)
	if err != nil {
		return nil, err
	}

	return finish(static)
}

// finish validates, flattens and extends a static tree. Nodes placed at
// an illegal level by an included mixin are only visible here.
func finish(static *Node) (*Stylesheet, error) {
	if err := CheckNesting(static); err != nil {
		return nil, err
	}

	sheet, err := Flatten(static)
	if err != nil {
		return nil, err
	}

	if err := Extend(sheet); err != nil {
		return nil, err
	}

	return sheet, nil
}

// loadEntry finds and parses the entry stylesheet. The options are updated
// to name the file and the importer that found it.
func loadEntry(ctx context.Context, o *options, name string) (*File, *Node, error) {
	for _, imp := range o.importers() {
		f, err := imp.Find(ctx, name, "")
		if err != nil {
			return nil, nil, err
		}

		if f == nil {
			continue
		}

		if f.Importer == nil {
			f.Importer = imp
		}

		root, err := o.parser(ctx, f)
		if err != nil {
			return nil, nil, err
		}

		o.filename, o.importer = f.Path, f.Importer

		o.logger.TraceContext(ctx, "entry loaded",
			slog.String("name", name),
			slog.String("path", f.Path),
			slog.String("importer", imp.Kind()),
		)

		return f, root, nil
	}

	return nil, nil, ErrImportNotFound.With(slog.String("name", name))
}

// LoadFile resolves name through the configured importers and returns the
// parsed document, before evaluation.
func LoadFile(ctx context.Context, name string, opts ...Option) (*Node, error) {
	_, root, err := loadEntry(ctx, makeOptions(opts...), name)

	return root, err
}
