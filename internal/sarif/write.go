package sarif

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/reqgate/reqgate/internal/model"
)

// WriteFile writes a report as pretty-printed UTF-8 JSON, creating parent
// directories as needed, and returns the resolved absolute path.
func WriteFile(report *Report, path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", &model.PersistenceError{Kind: model.PersistSerialize, Path: path, Err: err}
	}

	if err := os.WriteFile(path, append(data, '\n'), 0640); err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
