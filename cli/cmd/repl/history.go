package repl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
)

const baseHistory = "history.utf8"

// Mode prefixes of history file lines.
const (
	evalPrefix = "E:"
	ctrlPrefix = "C:"
)

// HistoryEntry is one submitted line and the mode it was submitted in.
type HistoryEntry struct {
	Line string
	Mode inputMode
}

func (e HistoryEntry) String() string {
	if e.Mode == modeCtrl {
		return ctrlPrefix + e.Line
	}

	return evalPrefix + e.Line
}

func parseEntry(line string) HistoryEntry {
	if s, ok := strings.CutPrefix(line, ctrlPrefix); ok {
		return HistoryEntry{Line: s, Mode: modeCtrl}
	}

	s, _ := strings.CutPrefix(line, evalPrefix)

	return HistoryEntry{Line: s, Mode: modeEval}
}

// History is the list of submitted lines, persisted to a file. A line
// submitted again in the same mode moves to the end.
type History struct {
	path    string
	entries []HistoryEntry
	mu      sync.RWMutex
}

// NewHistory returns an empty history persisted at path.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Load replaces the entries with those stored in the history file. A
// missing file is an empty history.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.Open(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}
	defer file.Close()

	h.entries = h.entries[:0]

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			h.entries = append(h.entries, parseEntry(line))
		}
	}

	return scanner.Err()
}

// Add appends line in mode and persists it. The file is rewritten when
// an earlier duplicate was removed, and appended to otherwise.
func (h *History) Add(line string, mode inputMode) error {
	entry := HistoryEntry{Line: strings.TrimSpace(line), Mode: mode}
	if entry.Line == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return nil
	}

	i := slices.Index(h.entries, entry)
	if i >= 0 {
		h.entries = slices.Delete(h.entries, i, i+1)
	}

	h.entries = append(h.entries, entry)

	if i >= 0 {
		return h.rewrite()
	}

	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(entry.String() + "\n")

	return err
}

// Entry returns the entry at index i, oldest first.
func (h *History) Entry(i int) (HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return HistoryEntry{}, ErrOutOfBounds
	}

	return h.entries[i], nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}

// rewrite writes every entry to the history file. h.mu must be held.
func (h *History) rewrite() error {
	var b strings.Builder

	for _, e := range h.entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	return os.WriteFile(h.path, []byte(b.String()), 0o600)
}
