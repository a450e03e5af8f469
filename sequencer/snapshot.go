package sequencer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const snapshotTimeFormat = "2006-01-02_15-04-05"

// SnapshotInfo describes a saved snapshot (for listing)
type SnapshotInfo struct {
	Path      string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Source writes the current state as program text. Each part's notes are
// rotated so that its pointer is at 0; addresses are relative to the read
// index, so the text plays on exactly from here.
func (e *Engine) Source() string {
	return e.source(e.config.Tempo(), e.config.Subdivision())
}

func (e *Engine) source(tempo, subdiv int) string {
	var b strings.Builder
	for _, p := range e.order {
		notes := make([]string, p.Len())
		for i := range notes {
			notes[i] = p.NoteAt(p.pointer + i).String()
		}
		fmt.Fprintf(&b, "%s = [%s]\n", p.Name, strings.Join(notes, ", "))
	}
	for _, p := range e.order {
		for prop, r := range properties {
			if v := p.props[prop]; v != r.def {
				fmt.Fprintf(&b, "%s.%s = %d\n", p.Name, r.name, v)
			}
		}
	}

	fmt.Fprintf(&b, "\n<%s> = %d\n<%s> = %d\n", Tempo, tempo, Subdivision, subdiv)
	if l, ok := e.config.Get(IterationLength); ok {
		fmt.Fprintf(&b, "<%s> = %d\n", IterationLength, l)
	}

	if len(e.rules) > 0 {
		b.WriteString("\n")
	}
	for _, r := range e.rules {
		b.WriteString(r.String())
		b.WriteString("\n")
	}
	return b.String()
}

// SnapshotsDir returns the snapshots directory path
func SnapshotsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-celltone", "snapshots"), nil
}

// SaveSnapshot writes src to a timestamped file and returns its path.
func SaveSnapshot(name, src string) (string, error) {
	dir, err := SnapshotsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	filename := time.Now().Format(snapshotTimeFormat)
	if name = sanitizeFilename(name); name != "" {
		filename += "_" + name
	}
	path := filepath.Join(dir, filename+".ct")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ListSnapshots returns saved snapshots, newest first
func ListSnapshots() ([]SnapshotInfo, error) {
	dir, err := SnapshotsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snaps []SnapshotInfo
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), ".ct")
		if entry.IsDir() || !ok || len(base) < len(snapshotTimeFormat) {
			continue
		}
		ts, err := time.ParseInLocation(snapshotTimeFormat, base[:len(snapshotTimeFormat)], time.Local)
		if err != nil {
			continue
		}
		name := ""
		if rest := base[len(snapshotTimeFormat):]; strings.HasPrefix(rest, "_") {
			name = rest[1:]
		}
		snaps = append(snaps, SnapshotInfo{
			Path:      filepath.Join(dir, entry.Name()),
			Name:      name,
			Timestamp: ts,
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.After(snaps[j].Timestamp)
	})
	return snaps, nil
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".ct")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':':
			return '-'
		case '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, name)
}
