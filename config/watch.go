package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MasonSRE/opsorch/timer"
)

// DefaultWatchDebounce collapses the burst of events an editor save emits.
const DefaultWatchDebounce = 100 * time.Millisecond

// Watch reloads the document at path whenever it changes on disk and hands
// the result to fn, which also receives reload and watcher errors. Events
// closer together than debounce trigger one reload. Watch blocks until ctx
// is done.
//
// The directory is watched rather than the file, so editors that replace
// the file on save are still followed.
func Watch(ctx context.Context, path string, fn func(Config, error), debounce time.Duration) error {
	if path == "" {
		return ErrEmptyPath
	}
	if _, err := detectFormat(path); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWatchFailed, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: %w", ErrWatchFailed, err)
	}

	reg := timer.New()
	defer reg.ClearAll()

	name := filepath.Base(path)
	var pending timer.Handle
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			reg.ClearTimer(pending)
			pending = reg.SetTimeout(func() {
				cfg, err := Load(path)
				fn(cfg, err)
			}, debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(Config{}, fmt.Errorf("%w: %w", ErrWatchFailed, err))
		}
	}
}
