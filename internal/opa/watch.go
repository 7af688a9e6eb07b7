package opa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a policy bundle directory and fires onChange after writes
// settle, so callers can refresh the cached bundle hash and revision.
type Watcher struct {
	watcher  *fsnotify.Watcher
	log      *zap.Logger
	onChange func()
}

// NewWatcher watches bundleDir and its immediate subdirectories.
func NewWatcher(bundleDir string, log *zap.Logger, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Add(bundleDir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", bundleDir, err)
	}
	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to read bundle dir %q: %w", bundleDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(bundleDir, e.Name())
		if err := fw.Add(sub); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", sub, err)
		}
	}

	return &Watcher{watcher: fw, log: log, onChange: onChange}, nil
}

// Run blocks until ctx is cancelled, firing onChange 500ms after the last
// write or create event in the bundle.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					w.log.Info("policy bundle changed, refreshing", zap.String("path", event.Name))
					w.onChange()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("bundle watcher error", zap.Error(err))
		}
	}
}
