// Package config loads the gate's runtime settings from YAML.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configurable gate parameters.
type Config struct {
	EvidenceDir        string `yaml:"evidence_dir"`
	DecisionLog        string `yaml:"decision_log"`
	VerificationLog    string `yaml:"verification_log"`
	BundlePath         string `yaml:"bundle_path"`
	OPABinary          string `yaml:"opa_binary"`
	EvalTimeoutSeconds int    `yaml:"eval_timeout_seconds"`
	BaselineID         string `yaml:"baseline_id"`
	BaselineVersion    string `yaml:"baseline_version"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		EvidenceDir:        "evidence_store",
		BundlePath:         "bundles/compliance",
		OPABinary:          "opa",
		EvalTimeoutSeconds: 30,
		BaselineID:         "default",
		BaselineVersion:    "1.0.0",
	}
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.reqgate/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 hash of the raw
// YAML bytes on disk. When no file exists (defaults used), the hash is the
// SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		path = filepath.Join(home, ".reqgate", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	h := sha256.Sum256(data)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}

// DecisionLogPath resolves the decision log location, defaulting under the
// evidence store.
func (c *Config) DecisionLogPath() string {
	if c.DecisionLog != "" {
		return c.DecisionLog
	}
	return filepath.Join(c.EvidenceDir, "decision_logs", "decisions.jsonl")
}

// VerificationLogPath resolves the verification event log location,
// defaulting under the evidence store.
func (c *Config) VerificationLogPath() string {
	if c.VerificationLog != "" {
		return c.VerificationLog
	}
	return filepath.Join(c.EvidenceDir, "verification_logs", "events.jsonl")
}

// Timeout returns the policy evaluation deadline.
func (c *Config) Timeout() time.Duration {
	if c.EvalTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.EvalTimeoutSeconds) * time.Second
}
