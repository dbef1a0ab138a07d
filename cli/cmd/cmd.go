package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ardnew/mung"

	"github.com/ardnew/sassy/lang"
	"github.com/ardnew/sassy/log"
	"github.com/ardnew/sassy/pkg"
)

// ContextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// Compiler holds the flags shared by every command that loads stylesheets.
type Compiler struct {
	LoadPath      []string `help:"Directory searched for imports (repeatable, searched before SASSY_PATH)" name:"load-path" placeholder:"DIR" short:"I" type:"path"`
	MaxDepth      int      `default:"100"                                                            help:"Maximum nesting of function and mixin calls"`
	MaxIterations int      `default:"10000"                                                           help:"Maximum iterations of a single loop"`
}

type compilerKey struct{}

// WithCompiler returns a new context.Context containing the compiler flags.
func WithCompiler(ctx context.Context, c Compiler) context.Context {
	return context.WithValue(ctx, compilerKey{}, c)
}

func compilerFrom(ctx context.Context) Compiler {
	c, ok := ctx.Value(compilerKey{}).(Compiler)
	if !ok {
		return Compiler{
			MaxDepth:      lang.DefaultMaxDepth,
			MaxIterations: lang.DefaultMaxIterations,
		}
	}

	return c
}

// LoadPaths returns the -I directories followed by those listed in the
// SASSY_PATH environment variable. Duplicates and entries that are not
// directories are removed.
func (c Compiler) LoadPaths() []string {
	list := mung.Make(
		mung.WithSubjectItems(os.Getenv(pkg.PathEnv)),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(c.LoadPath...),
		mung.WithFilter(isDir),
	).String()

	var dirs []string

	for dir := range strings.SplitSeq(list, string(os.PathListSeparator)) {
		if dir != "" && isDir(dir) && !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	return dirs
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// options returns the compiler options for the entry stylesheet at path,
// along with the name the entry importer resolves it by. The entry's own
// directory is searched before the load paths.
func (c Compiler) options(path string) (name string, opts []lang.Option) {
	dirs := c.LoadPaths()
	loadPaths := make([]lang.Importer, len(dirs))

	for i, dir := range dirs {
		loadPaths[i] = lang.NewDirImporter(dir)
	}

	entry := lang.NewDirImporter(filepath.Dir(path))

	return filepath.Base(path), []lang.Option{
		lang.WithImporter(entry),
		lang.WithLoadPaths(loadPaths...),
		lang.WithLogger(log.Default()),
		lang.WithMaxDepth(c.MaxDepth),
		lang.WithMaxIterations(c.MaxIterations),
	}
}

// stdio names standard input or output in place of a file.
const stdio = "-"

// output opens the named output file, or stdout for "" and "-". The
// returned close function must be called when writing is done.
func output(name string) (io.Writer, func() error, error) {
	if name == "" || name == stdio {
		return os.Stdout, func() error { return nil }, nil
	}

	f, err := os.Create(name)
	if err != nil {
		return nil, nil, ErrWriteOutput.With(slog.String("file", name)).Wrap(err)
	}

	return f, f.Close, nil
}

// commandError attaches the command name to err.
func commandError(command string, err error) error {
	if err == nil {
		return nil
	}

	return lang.WrapError(err).With(slog.String("command", command))
}
