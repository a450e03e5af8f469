// Package watch re-reads a program file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Settle is how long the file must be quiet before it is re-read. Editors
// often write a file in several steps.
const Settle = 100 * time.Millisecond

// Watcher calls a function with the new contents of a file each time it
// changes.
//
// The directory is watched rather than the file so that editors which save
// by rename are still seen.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(src []byte)
}

// New creates a watcher for path. Start must be called to begin watching.
func New(path string, onChange func(src []byte)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{path: abs, watcher: w, onChange: onChange}, nil
}

// Start blocks until ctx is cancelled, then closes the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	settle := time.NewTimer(Settle)
	settle.Stop()
	defer settle.Stop()

	slog.Debug("watching program", "path", w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				settle.Reset(Settle)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("program watcher error", "error", err)

		case <-settle.C:
			w.reload()

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reload() {
	src, err := os.ReadFile(w.path)
	if err != nil {
		slog.Warn("program reread failed", "path", w.path, "error", err)
		return
	}
	slog.Info("program changed", "path", w.path, "bytes", len(src))
	w.onChange(src)
}
