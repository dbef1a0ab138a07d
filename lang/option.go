package lang

import (
	"context"

	"github.com/ardnew/sassy/log"
)

const (
	// DefaultMaxDepth is the default limit on nested function and mixin
	// calls.
	DefaultMaxDepth = 100

	// DefaultMaxIterations is the default limit on iterations of a single
	// loop.
	DefaultMaxIterations = 10000
)

// Parser decodes the content of an imported file into a root node.
type Parser func(ctx context.Context, file *File) (*Node, error)

// ParseFile is the default [Parser]. It decodes YAML (and JSON) documents
// with [ParseYAML].
func ParseFile(ctx context.Context, file *File) (*Node, error) {
	return ParseYAML(ctx, file.Data, file.Path)
}

type options struct {
	loadPaths     []Importer
	importer      Importer
	filename      string
	parser        Parser
	logger        log.Logger
	maxDepth      int
	maxIterations int
}

// Option configures compilation.
type Option func(*options)

// WithLoadPaths sets the ordered list of importers searched for imports
// after the importer of the importing file.
func WithLoadPaths(importers ...Importer) Option {
	return func(o *options) {
		o.loadPaths = append(o.loadPaths, importers...)
	}
}

// WithImporter sets the importer that produced the entry stylesheet. It
// resolves imports relative to that file before the load paths are
// searched.
func WithImporter(imp Importer) Option {
	return func(o *options) {
		o.importer = imp
	}
}

// WithFilename sets the canonical path of the entry stylesheet.
func WithFilename(name string) Option {
	return func(o *options) {
		o.filename = name
	}
}

// WithParser sets the parser used for imported files.
func WithParser(p Parser) Option {
	return func(o *options) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMaxDepth sets the maximum depth of nested function and mixin calls.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithMaxIterations sets the maximum number of iterations of one loop.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.maxIterations = n
	}
}

// makeOptions applies opts on top of the defaults.
func makeOptions(opts ...Option) *options {
	o := &options{
		parser:        ParseFile,
		maxDepth:      DefaultMaxDepth,
		maxIterations: DefaultMaxIterations,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o
}

// importers returns every importer known to the options, the entry
// importer first.
func (o *options) importers() []Importer {
	out := make([]Importer, 0, len(o.loadPaths)+1)
	if o.importer != nil {
		out = append(out, o.importer)
	}

	for _, imp := range o.loadPaths {
		if imp != o.importer {
			out = append(out, imp)
		}
	}

	return out
}
