package widgets

import (
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	"go-celltone/sequencer"
)

const (
	// DefaultWidth is used when the terminal size is unknown.
	DefaultWidth = 80
	// Indent prefixes continuation lines.
	Indent = 5
)

// TermWidth returns the width of the terminal on stdout.
func TermWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// Verbose formats frames as plain text for the console. Level 1 prints the
// parts, 2 adds every rule firing, 3 adds the slots each firing read and
// wrote.
type Verbose struct {
	Level int
	Width int
}

// Frame formats the firings of the last iteration, then the parts as they
// are now.
func (v Verbose) Frame(f sequencer.Frame) string {
	var b strings.Builder
	if log := v.Log(f.Records, f.Parts); log != "" {
		b.WriteString(log)
		b.WriteString("\n")
	}
	if parts := v.Parts(f.Parts, f.Length); parts != "" {
		b.WriteString(parts)
		b.WriteString("\n")
	}
	return b.String()
}

func (v Verbose) width() int {
	if v.Width <= 0 {
		return DefaultWidth
	}
	return v.Width
}

// Parts shows the window each part will play next, by part name. '[' and ']'
// mark where a part starts and ends, so a window that wraps is visible.
func (v Verbose) Parts(parts []sequencer.PartView, length int) string {
	if v.Level < 1 {
		return ""
	}
	sorted := slices.Clone(parts)
	slices.SortFunc(sorted, func(a, b sequencer.PartView) int {
		return strings.Compare(a.Name, b.Name)
	})

	var lines []string
	for _, p := range sorted {
		lines = append(lines, wrap(windowLine(p, length), v.width())...)
	}
	return strings.Join(lines, "\n") + "\n"
}

func windowLine(p sequencer.PartView, length int) string {
	var b strings.Builder
	b.WriteString(p.Name + ": ")
	n := len(p.Notes)
	for t := range length {
		i := (p.Pointer + t) % n
		if i == 0 {
			b.WriteByte('[')
		} else {
			b.WriteByte(' ')
		}
		note := p.Notes[i]
		if note.IsPause() || note >= 0 && note < 10 {
			b.WriteByte(' ')
		}
		b.WriteString(note.String())
		if i == n-1 {
			b.WriteByte(']')
		} else {
			b.WriteByte(',')
		}
	}
	return b.String()
}

// Log lists the rules that fired. At level 3 each firing also shows the
// participating parts before and after, with the involved slots marked.
func (v Verbose) Log(records []sequencer.Record, parts []sequencer.PartView) string {
	if v.Level < 2 || len(records) == 0 {
		return ""
	}
	order := make([]string, len(parts))
	for i, p := range parts {
		order[i] = p.Name
	}

	var lines []string
	for _, r := range records {
		lines = append(lines, wrap(r.Rule.String(), v.width())...)
		if v.Level < 3 {
			continue
		}
		conds, mods := r.Marks(order)
		lines = append(lines, "")
		lines = append(lines, v.marked(r.Before, conds)...)
		lines = append(lines, "=====>", "")
		lines = append(lines, v.marked(r.After, mods)...)
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n") + "\n"
}

func (v Verbose) marked(state sequencer.BeatState, marks map[string][]int) []string {
	names := make([]string, 0, len(marks))
	for name := range marks {
		names = append(names, name)
	}
	slices.Sort(names)

	var lines []string
	for i, name := range names {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, MarkedPart(name, state[name].Notes, marks[name], v.width())...)
	}
	return lines
}

// MarkedPart prints a part's notes with a '^' under each marked index,
// breaking lines to fit width.
func MarkedPart(name string, notes []sequencer.Note, marks []int, width int) []string {
	var lines []string
	head := name + " = ["
	line := head
	mark := strings.Repeat(" ", len(head))
	fresh := true

	flush := func() {
		lines = append(lines, line)
		if m := strings.TrimRight(mark, " "); m != "" {
			lines = append(lines, m)
		}
	}

	for i, n := range notes {
		token := n.String() + ","
		if i == len(notes)-1 {
			token = n.String() + "]"
		}
		if !fresh {
			if len(line)+1+len(token) > width {
				flush()
				line = strings.Repeat(" ", Indent)
				mark = line
			} else {
				line += " "
			}
		}
		if slices.Contains(marks, i) {
			mark += strings.Repeat(" ", len(line)-len(mark)) + "^"
		}
		line += token
		fresh = false
	}
	flush()
	return lines
}

// wrap breaks text at spaces to fit width, indenting continuation lines.
func wrap(text string, width int) []string {
	if ansi.StringWidth(text) <= width || width <= Indent+1 {
		return []string{text}
	}
	wrapped := strings.Split(ansi.Wordwrap(text, width-Indent, ""), "\n")
	lines := make([]string, len(wrapped))
	for i, l := range wrapped {
		l = strings.TrimRight(l, " ")
		if i > 0 {
			l = strings.Repeat(" ", Indent) + strings.TrimLeft(l, " ")
		}
		lines[i] = l
	}
	return lines
}
