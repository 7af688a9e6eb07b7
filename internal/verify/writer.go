package verify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/reqgate/reqgate/internal/model"
)

// Writer appends verification events to a JSONL file. Appends are
// serialized so concurrent evaluations never interleave partial lines.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter returns a writer for the given log path. The file is opened
// per append; the writer itself holds no descriptor.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the log file location.
func (w *Writer) Path() string {
	return w.path
}

// Append fills, validates, and writes one event, returning the event id.
// An event that fails schema validation is rejected before anything is
// written.
func (w *Writer) Append(ev Event) (string, error) {
	id := Fill(ev)
	if err := Validate(ev); err != nil {
		return "", err
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return "", &model.PersistenceError{Kind: model.PersistSerialize, Path: w.path, Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: dir, Err: err}
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: w.path, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: w.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: w.path, Err: err}
	}
	return id, nil
}
