package opa

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := LoadManifest(t.TempDir())
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Revision != "" {
		t.Errorf("revision = %q, want empty", m.Revision)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := `{"revision": "r42", "roots": ["compliance"]}`
	if err := os.WriteFile(filepath.Join(dir, ".manifest"), []byte(manifest), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Revision != "r42" {
		t.Errorf("revision = %q, want r42", m.Revision)
	}
	if len(m.Roots) != 1 || m.Roots[0] != "compliance" {
		t.Errorf("roots = %v", m.Roots)
	}
}

func TestBundleHashDeterministic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.rego"), []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.rego"), []byte("package b\n"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := BundleHash(dir)
	if err != nil {
		t.Fatalf("BundleHash: %v", err)
	}
	if !strings.HasPrefix(first, "sha256:") {
		t.Errorf("hash = %q, want sha256: prefix", first)
	}

	second, err := BundleHash(dir)
	if err != nil {
		t.Fatalf("BundleHash: %v", err)
	}
	if first != second {
		t.Fatal("hash is not deterministic")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.rego"), []byte("package a2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	changed, err := BundleHash(dir)
	if err != nil {
		t.Fatalf("BundleHash: %v", err)
	}
	if changed == first {
		t.Fatal("hash did not change with bundle content")
	}
}
