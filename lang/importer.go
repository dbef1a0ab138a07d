package lang

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
	"golang.org/x/tools/txtar"
)

// File is the content of one stylesheet obtained from an [Importer].
type File struct {
	// Path is the canonical identity of the file. Two imports resolving to
	// the same Path are the same file.
	Path     string
	Data     []byte
	Importer Importer
}

// Fingerprint returns the content hash of f.
func (f *File) Fingerprint() uint64 { return xxh3.Hash(f.Data) }

// Importer resolves import names to file content.
//
// Importers are embedded by value in generated programs: an importer type
// must be registered with [RegisterImporter] and must round-trip through
// YAML encoding of its exported fields.
type Importer interface {
	// Kind returns the name the importer type is registered under.
	Kind() string

	// Find resolves name, imported from the file with canonical path base
	// ("" for the entry stylesheet). It returns nil and no error when the
	// name cannot be resolved by this importer.
	Find(ctx context.Context, name, base string) (*File, error)

	// Load reads the file with the given canonical path.
	Load(ctx context.Context, path string) ([]byte, error)
}

// candidates returns the file names tried for an import name, in order.
func candidates(name string) []string {
	dir, base := path.Split(name)

	switch path.Ext(base) {
	case ".yaml", ".yml", ".json":
		return []string{name, dir + "_" + base}
	}

	return []string{
		name + ".yaml",
		dir + "_" + base + ".yaml",
		name + ".yml",
		dir + "_" + base + ".yml",
		name + ".json",
		name,
	}
}

// DirImporter resolves imports against a directory on disk. Names are
// tried relative to the importing file first, then relative to Root.
type DirImporter struct {
	Root string `yaml:"root"`
}

// NewDirImporter returns an importer rooted at dir.
func NewDirImporter(dir string) *DirImporter {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	return &DirImporter{Root: filepath.Clean(dir)}
}

// Kind implements Importer.
func (*DirImporter) Kind() string { return "dir" }

// Find implements Importer.
func (d *DirImporter) Find(ctx context.Context, name, base string) (*File, error) {
	dirs := []string{d.Root}

	switch {
	case filepath.IsAbs(name):
		dirs = []string{""}
	case base != "" && d.contains(base):
		dirs = []string{filepath.Dir(base), d.Root}
	}

	for _, dir := range dirs {
		for _, c := range candidates(filepath.ToSlash(name)) {
			p := filepath.Join(dir, filepath.FromSlash(c))

			info, err := os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}

			data, err := d.Load(ctx, p)
			if err != nil {
				return nil, err
			}

			return &File{Path: filepath.Clean(p), Data: data, Importer: d}, nil
		}
	}

	return nil, nil
}

// Load implements Importer.
func (d *DirImporter) Load(_ context.Context, p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("path", p))
	}
	defer f.Close()

	// Wrap reader with async read-ahead for concurrent I/O.
	ra := readahead.NewReader(f)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).With(slog.String("path", p))
	}

	return data, nil
}

func (d *DirImporter) contains(p string) bool {
	rel, err := filepath.Rel(d.Root, p)

	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ArchiveImporter resolves imports against the files of a txtar archive
// held in memory. Canonical paths have the form "name:file".
type ArchiveImporter struct {
	Name    string `yaml:"name"`
	Archive string `yaml:"archive"`

	once  sync.Once
	files map[string][]byte
}

// NewArchiveImporter returns an importer over the files of a.
func NewArchiveImporter(name string, a *txtar.Archive) *ArchiveImporter {
	return &ArchiveImporter{Name: name, Archive: string(txtar.Format(a))}
}

// Kind implements Importer.
func (*ArchiveImporter) Kind() string { return "archive" }

func (a *ArchiveImporter) index() map[string][]byte {
	a.once.Do(func() {
		ar := txtar.Parse([]byte(a.Archive))
		a.files = make(map[string][]byte, len(ar.Files))

		for _, f := range ar.Files {
			a.files[path.Clean(f.Name)] = f.Data
		}
	})

	return a.files
}

// Files returns the canonical paths of every file in the archive.
func (a *ArchiveImporter) Files() []string {
	ar := txtar.Parse([]byte(a.Archive))
	out := make([]string, len(ar.Files))

	for i, f := range ar.Files {
		out[i] = a.Name + ":" + path.Clean(f.Name)
	}

	return out
}

// Find implements Importer.
func (a *ArchiveImporter) Find(_ context.Context, name, base string) (*File, error) {
	files := a.index()
	dirs := []string{""}

	if rel, ok := strings.CutPrefix(base, a.Name+":"); ok {
		dirs = []string{path.Dir(rel), ""}
	}

	for _, dir := range dirs {
		for _, c := range candidates(name) {
			p := path.Clean(path.Join(dir, c))

			if data, ok := files[p]; ok {
				return &File{Path: a.Name + ":" + p, Data: data, Importer: a}, nil
			}
		}
	}

	return nil, nil
}

// Load implements Importer.
func (a *ArchiveImporter) Load(_ context.Context, p string) ([]byte, error) {
	rel, ok := strings.CutPrefix(p, a.Name+":")
	if ok {
		if data, ok := a.index()[rel]; ok {
			return data, nil
		}
	}

	return nil, ErrReadInput.Wrap(os.ErrNotExist).With(slog.String("path", p))
}

//nolint:gochecknoglobals
var (
	registryMu sync.RWMutex
	registry   = map[string]func() Importer{
		"dir":     func() Importer { return &DirImporter{} },
		"archive": func() Importer { return &ArchiveImporter{} },
	}
)

// RegisterImporter makes an importer type available to [UnmarshalImporter]
// under kind. The factory returns a zero value to decode into.
func RegisterImporter(kind string, factory func() Importer) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[kind] = factory
}

type envelope struct {
	Kind string `yaml:"kind"`
	Spec any    `yaml:"spec"`
}

// MarshalImporter encodes imp as a YAML envelope naming its kind.
func MarshalImporter(imp Importer) ([]byte, error) {
	if imp == nil {
		return nil, ErrInvalidImporter.Wrap(errors.New("nil importer"))
	}

	data, err := yaml.MarshalWithOptions(
		envelope{Kind: imp.Kind(), Spec: imp},
		yaml.UseLiteralStyleIfMultiline(true),
	)
	if err != nil {
		return nil, ErrInvalidImporter.Wrap(err).With(slog.String("kind", imp.Kind()))
	}

	return data, nil
}

// UnmarshalImporter decodes an envelope produced by [MarshalImporter].
func UnmarshalImporter(data []byte) (Importer, error) {
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalidImporter.Wrap(err)
	}

	registryMu.RLock()
	factory, ok := registry[env.Kind]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrInvalidImporter.Wrap(errors.New("unknown importer kind")).
			With(slog.String("kind", env.Kind))
	}

	spec, err := yaml.Marshal(env.Spec)
	if err != nil {
		return nil, ErrInvalidImporter.Wrap(err).With(slog.String("kind", env.Kind))
	}

	imp := factory()
	if err := yaml.Unmarshal(spec, imp); err != nil {
		return nil, ErrInvalidImporter.Wrap(err).With(slog.String("kind", env.Kind))
	}

	return imp, nil
}
