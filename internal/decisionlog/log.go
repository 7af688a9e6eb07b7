package decisionlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/reqgate/reqgate/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new decision log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Log is an append-only JSONL decision log with SHA-256 hash chaining.
// Each entry's prev_hash is the hash of the previous entry's JSON line,
// making after-the-fact edits detectable.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens (or creates) a decision log for appending. If the file already
// exists, the last line is read to recover the chain tail so the chain
// continues across process restarts.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, &model.PersistenceError{Kind: model.PersistIO, Path: dir, Err: err}
	}

	prevHash := GenesisHash

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = make([]byte, len(scanner.Bytes()))
			copy(lastLine, scanner.Bytes())
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
	}

	return &Log{
		path:     path,
		file:     file,
		prevHash: prevHash,
	}, nil
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// Record appends an entry with hash chaining. It sets the entry's PrevHash,
// marshals to a single JSON line, writes, and syncs to disk.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return &model.PersistenceError{Kind: model.PersistSerialize, Path: l.path, Err: err}
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return &model.PersistenceError{Kind: model.PersistIO, Path: l.path, Err: err}
	}

	if err := l.file.Sync(); err != nil {
		return &model.PersistenceError{Kind: model.PersistIO, Path: l.path, Err: err}
	}

	l.prevHash = HashLine(line)
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
