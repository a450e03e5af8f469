// Package debug keeps an optional category log in a file, separate from the
// program's normal output, for tracing the engine and the playback loop.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// syncFile flushes after every record so the log survives a crash.
type syncFile struct{ *os.File }

func (f syncFile) Write(p []byte) (int, error) {
	n, err := f.File.Write(p)
	if err == nil {
		err = f.File.Sync()
	}
	return n, err
}

type sink struct {
	mu     sync.Mutex
	file   *os.File
	log    *slog.Logger
	counts map[string]int
}

var out sink

// DefaultPath returns ~/.config/go-celltone/debug.log
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-celltone", "debug.log"), nil
}

// Enable truncates path (DefaultPath when empty) and starts logging to it.
// Enabling twice keeps the first file.
func Enable(path string) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.log != nil {
		return nil
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("debug log: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("debug log: %w", err)
	}

	h := slog.NewTextHandler(syncFile{f}, &slog.HandlerOptions{Level: slog.LevelDebug})
	out.file = f
	out.log = slog.New(h)
	out.counts = make(map[string]int)
	out.log.Debug("=== Debug logging started ===", "category", "debug", "pid", os.Getpid())
	return nil
}

// Disable closes the log file. Later calls to Log do nothing.
func Disable() {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.file != nil {
		out.file.Close()
	}
	out.file, out.log, out.counts = nil, nil, nil
}

// Enabled reports whether debug logging is on.
func Enabled() bool {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.log != nil
}

// Log writes one printf-style message under category.
func Log(category, format string, args ...any) {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.write(category, format, args)
}

// LogEvery writes only every nth call with the same category and format.
// Use it on per-step paths.
func LogEvery(n int, category, format string, args ...any) {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.log == nil || n <= 0 {
		return
	}
	key := category + "\x00" + format
	out.counts[key]++
	if c := out.counts[key]; c%n == 0 {
		out.write(category, format+" (every %d, count=%d)", append(args, n, c))
	}
}

func (s *sink) write(category, format string, args []any) {
	if s.log == nil {
		return
	}
	s.log.Debug(fmt.Sprintf(format, args...), "category", category)
}
