package pkg

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// DirMode is the permission mode used for created directories.
const DirMode os.FileMode = 0o700

// Prefix returns the base name used for the configuration and cache
// directories.
//
// It is the base name of the executable with its extension removed, except:
//   - "__debug_bin<N>" (dlv default output) becomes [Name]
//   - leading dots are removed
//
//nolint:gochecknoglobals
var Prefix = sync.OnceValue(
	func() string {
		id := os.Args[0]
		if exe, err := os.Executable(); err == nil {
			id = exe
		}

		id = filepath.Base(id)
		id = strings.TrimSuffix(id, filepath.Ext(id))
		id = debugBin.ReplaceAllString(id, Name)
		id = strings.TrimLeft(id, ".")

		if id == "" {
			return Name
		}

		return id
	},
)

var debugBin = regexp.MustCompile(`^__debug_bin\d*$`)

// ConfigDir returns the directory holding sassy configuration files.
//
//nolint:gochecknoglobals
var ConfigDir = sync.OnceValue(
	func() string { return userDir(os.UserConfigDir, ".config") },
)

// CacheDir returns the directory used for transient files such as REPL
// history and profiles.
//
//nolint:gochecknoglobals
var CacheDir = sync.OnceValue(
	func() string { return userDir(os.UserCacheDir, ".cache") },
)

// ConfigPath joins elem onto [ConfigDir].
func ConfigPath(elem ...string) string {
	return filepath.Join(append([]string{ConfigDir()}, elem...)...)
}

// MkdirAll creates the configuration and cache directories.
func MkdirAll() error {
	for _, dir := range []string{ConfigDir(), CacheDir()} {
		if err := os.MkdirAll(dir, DirMode); err != nil {
			return err
		}
	}

	return nil
}

// userDir resolves a per-user directory using base, falling back to a
// hidden directory under $HOME and finally the working directory.
func userDir(base func() (string, error), hidden string) string {
	dir, err := base()
	if err != nil {
		home, herr := os.UserHomeDir()
		switch {
		case herr == nil:
			dir = filepath.Join(home, hidden)
		default:
			if dir, err = os.Getwd(); err != nil {
				dir = "."
			}
		}
	}

	return filepath.Join(dir, Prefix())
}
