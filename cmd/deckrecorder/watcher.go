package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// runFileWatcher watches the parent directories of every bound recording
// file and feeds FileChanged events into the loop when a bound file appears
// or disappears behind the program's back.
//
// This keeps icons consistent with external deletion/creation, and covers
// the "file appears mid-recording" case: the reducer updates its cached
// existence but leaves the active key's icon and session alone until STOP
// succeeds.
func runFileWatcher(ctx context.Context, bindings map[uint8]string, events chan<- Event, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch directories, not files: fsnotify loses a file watch when the
	// file is removed, and the files we care about come and go.
	pathKey := make(map[string]uint8, len(bindings))
	dirs := make(map[string]bool)
	for key, path := range bindings {
		pathKey[filepath.Clean(path)] = key
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	logger.Debug("file watcher started", "dirs", len(dirs), "paths", len(pathKey))

	go func() {
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case fe, ok := <-w.Events:
				if !ok {
					return
				}
				key, bound := pathKey[filepath.Clean(fe.Name)]
				if !bound {
					continue
				}

				var exists bool
				switch {
				case fe.Op.Has(fsnotify.Create):
					exists = true
				case fe.Op.Has(fsnotify.Remove) || fe.Op.Has(fsnotify.Rename):
					exists = false
				default:
					// Writes fire continuously while the daemon records;
					// only appearance/disappearance matters here.
					continue
				}

				select {
				case events <- FileChanged{Key: key, Exists: exists, At: time.Now()}:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return nil
}
