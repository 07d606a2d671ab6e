package sync

import (
	"os"
	"path/filepath"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/juju/errors"
)

// FailedEntry records a row that could not be synced.
type FailedEntry struct {
	Resource string `json:"resource_tag"`
	PK       int64  `json:"pk"`
	Error    string `json:"error"`
}

// FailedLog is a JSON array of FailedEntry kept in a file. Every Add reads
// the file fresh and rewrites it; identical entries are stored once. With
// an empty path entries are only kept in memory.
type FailedLog struct {
	path string

	mu      sync.Mutex
	entries []FailedEntry
}

// NewFailedLog creates a log backed by path.
func NewFailedLog(path string) *FailedLog {
	return &FailedLog{path: path}
}

// Path returns the backing file, or "" for an in-memory log.
func (l *FailedLog) Path() string { return l.path }

func (l *FailedLog) read() ([]FailedEntry, error) {
	if l.path == "" {
		return l.entries, nil
	}
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s", l.path)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []FailedEntry
	if err := gojson.Unmarshal(data, &entries); err != nil {
		return nil, errors.Annotatef(err, "decoding %s", l.path)
	}
	return entries, nil
}

func (l *FailedLog) write(entries []FailedEntry) error {
	if l.path == "" {
		l.entries = entries
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Annotate(err, "creating failed entries dir")
	}
	if entries == nil {
		entries = []FailedEntry{}
	}
	data, err := gojson.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(os.WriteFile(l.path, data, 0o644), "writing %s", l.path)
}

// Add appends e unless an identical entry is already present.
func (l *FailedLog) Add(e FailedEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	for _, have := range entries {
		if have == e {
			return nil
		}
	}
	return l.write(append(entries, e))
}

// Entries returns the logged entries.
func (l *FailedLog) Entries() ([]FailedEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	out := make([]FailedEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Clear empties the log.
func (l *FailedLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(nil)
}
