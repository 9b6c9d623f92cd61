package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives a freshly loaded config, or the error that
// prevented loading it.
type ReloadFunc func(Config, error)

// Watch reloads path whenever it is written or replaced and passes
// the result to fn. The watch is set up before Watch returns; the
// returned channel is closed once ctx is done and the watcher has
// stopped.
func Watch(ctx context.Context, path string, fn ReloadFunc) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(abs)
				if err == nil {
					err = cfg.Validate()
				}
				fn(cfg, err)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fn(Config{}, fmt.Errorf("watch %s: %w", abs, err))
			}
		}
	}()
	return done, nil
}
