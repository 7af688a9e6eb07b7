package opa

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/reqgate/reqgate/internal/model"
)

// Manifest mirrors the .manifest file OPA bundles carry at their root.
type Manifest struct {
	Revision string   `json:"revision"`
	Roots    []string `json:"roots,omitempty"`
}

// LoadManifest reads bundleDir/.manifest. A missing manifest is not an
// error; it yields an empty revision so callers can still report provenance.
func LoadManifest(bundleDir string) (*Manifest, error) {
	path := filepath.Join(bundleDir, ".manifest")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &model.PersistenceError{Kind: model.PersistSerialize, Path: path, Err: err}
	}
	return &m, nil
}

// BundleHash digests every regular file under bundleDir in sorted path
// order, so the same bundle content always produces the same hash no matter
// how the filesystem enumerates it.
func BundleHash(bundleDir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(bundleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", &model.PersistenceError{Kind: model.PersistIO, Path: bundleDir, Err: err}
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		rel, relErr := filepath.Rel(bundleDir, path)
		if relErr != nil {
			rel = path
		}
		io.WriteString(h, filepath.ToSlash(rel))
		h.Write([]byte{0})
		f, err := os.Open(path)
		if err != nil {
			return "", &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", &model.PersistenceError{Kind: model.PersistIO, Path: path, Err: err}
		}
		f.Close()
		h.Write([]byte{0})
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}
