package lang

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
)

// programRegistry stores parsed programs keyed by the hash of their text.
//
//nolint:gochecknoglobals
var programRegistry sync.Map

// programState tracks the parse of one program text.
type programState struct {
	once sync.Once
	prog *Program
	err  error
}

// CompileProgram parses program text produced by [Generate]. Programs are
// cached by content, so compiling the same text again returns the same
// *Program without parsing it or compiling its expressions again.
func CompileProgram(ctx context.Context, text string, opts ...Option) (*Program, error) {
	o := makeOptions(opts...)

	key := strconv.FormatUint(xxh3.HashString(text), 36)
	value, hit := programRegistry.LoadOrStore(key, new(programState))
	state, _ := value.(*programState)

	o.logger.TraceContext(ctx, "program cache lookup",
		slog.String("key", key),
		slog.Bool("cache_hit", hit),
	)

	state.once.Do(func() {
		state.prog, state.err = ParseProgram(text)
		if state.err != nil {
			state.err = WrapError(state.err).With(slog.Int("program_length", len(text)))
		}
	})

	return state.prog, state.err
}

// ReadProgram reads program text from r and compiles it with
// [CompileProgram].
func ReadProgram(ctx context.Context, r io.Reader, opts ...Option) (*Program, error) {
	// Wrap reader with async read-ahead for concurrent I/O.
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("source", "reader"))
	}

	return CompileProgram(ctx, string(data), opts...)
}

// ClearCache discards every cached program.
func ClearCache() {
	programRegistry.Clear()
}
