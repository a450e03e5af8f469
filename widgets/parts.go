package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-celltone/sequencer"
	"go-celltone/theme"
)

// InWindow reports which slots of a part the next schedule plays.
func InWindow(p sequencer.PartView, length int) []bool {
	in := make([]bool, len(p.Notes))
	if len(in) == 0 {
		return in
	}
	for t := 0; t < length && t < len(in); t++ {
		in[(p.Pointer+t)%len(in)] = true
	}
	return in
}

// PartRows renders one row per part. Slots in the playing window are bright
// and slots written this iteration are marked.
func PartRows(th *theme.Theme, parts []sequencer.PartView, length int) string {
	nameWidth := 0
	for _, p := range parts {
		nameWidth = max(nameWidth, lipgloss.Width(p.Name))
	}

	nameStyle := lipgloss.NewStyle().Foreground(th.Accent()).Width(nameWidth + 1)
	window := lipgloss.NewStyle().Foreground(th.Window())
	outside := lipgloss.NewStyle().Foreground(th.Muted())
	altered := lipgloss.NewStyle().Foreground(th.Altered()).Bold(true)

	rows := make([]string, len(parts))
	for i, p := range parts {
		in := InWindow(p, length)
		var row strings.Builder
		row.WriteString(nameStyle.Render(p.Name))
		for j, n := range p.Notes {
			text := n.String()
			if n.IsPause() {
				text = th.Symbols.Pause
			}
			lead := " "
			if j == p.Pointer {
				lead = th.Symbols.Pointer
			}
			if j < len(p.Altered) && p.Altered[j] {
				text += th.Symbols.Altered
			} else {
				text += " "
			}
			cell := fmt.Sprintf("%s%4s", lead, text)

			style := outside
			switch {
			case j < len(p.Altered) && p.Altered[j]:
				style = altered
			case in[j]:
				style = window
			}
			row.WriteString(style.Render(cell))
		}
		rows[i] = row.String()
	}
	return strings.Join(rows, "\n")
}
