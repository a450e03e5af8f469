package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-celltone/sequencer"
	"go-celltone/theme"
	"go-celltone/widgets"
)

const (
	tempoStep  = 5
	logRecords = 5 // firings shown under the parts
)

var keys = []widgets.KeyGroup{
	{Title: "Transport", Keys: []widgets.Key{
		{Keys: "space p", Short: "play/pause", Long: "play, or pause keeping the rest of the iteration"},
		{Keys: "s", Short: "stop", Long: "stop and reset every part to its original notes"},
	}},
	{Title: "Timing", Keys: []widgets.Key{
		{Keys: "+ -", Short: "tempo", Long: fmt.Sprintf("tempo up or down by %d bpm", tempoStep)},
		{Keys: "] [", Short: "subdivision", Long: "one step more or less per whole note"},
	}},
	{Title: "Program", Keys: []widgets.Key{
		{Keys: "r", Short: "rules", Long: "show the rules with how often each fired"},
		{Keys: "w", Short: "snapshot", Long: "save the running state as a program file"},
	}},
	{Keys: []widgets.Key{
		{Keys: "?", Short: "help", Long: "toggle this help"},
		{Keys: "q", Short: "quit", Long: "stop and quit"},
	}},
}

type Model struct {
	Manager   *sequencer.Manager
	Theme     *theme.Theme
	Name      string // program name shown in the header
	status    string
	statusErr bool
	showRules bool
	showHelp  bool
	quitting  bool
}

type UpdateMsg struct{}

// StatusMsg sets the status line, for example after a reload.
type StatusMsg struct {
	Text string
	Err  bool
}

func NewModel(manager *sequencer.Manager, th *theme.Theme, name string) Model {
	return Model{
		Manager: manager,
		Theme:   th,
		Name:    name,
	}
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Manager)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Manager.Stop()
			return m, tea.Quit

		case " ", "p":
			if m.Manager.State() == sequencer.Playing {
				m.Manager.Pause()
			} else {
				m.Manager.Play()
			}

		case "s":
			m.Manager.Stop()

		case "+", "=":
			tempo, subdiv := m.Manager.Timing()
			m.setTiming(tempo+tempoStep, subdiv)

		case "-", "_":
			tempo, subdiv := m.Manager.Timing()
			m.setTiming(tempo-tempoStep, subdiv)

		case "]":
			tempo, subdiv := m.Manager.Timing()
			m.setTiming(tempo, subdiv+1)

		case "[":
			tempo, subdiv := m.Manager.Timing()
			m.setTiming(tempo, subdiv-1)

		case "r":
			m.showRules = !m.showRules

		case "?":
			m.showHelp = !m.showHelp

		case "w":
			path, err := sequencer.SaveSnapshot(strings.TrimSuffix(m.Name, filepath.Ext(m.Name)), m.Manager.Source())
			if err != nil {
				m.status, m.statusErr = err.Error(), true
			} else {
				m.status, m.statusErr = "saved "+path, false
			}
		}

	case StatusMsg:
		m.status, m.statusErr = msg.Text, msg.Err

	case UpdateMsg:
		return m, ListenForUpdates(m.Manager)
	}

	return m, nil
}

// setTiming ignores values outside the option ranges; the keys just stop
// having an effect at the limits.
func (m *Model) setTiming(tempo, subdiv int) {
	if err := m.Manager.SetTiming(tempo, subdiv); err == nil {
		m.status, m.statusErr = "", false
	}
}

func (m Model) stateSymbol(s sequencer.PlayState) string {
	switch s {
	case sequencer.Playing:
		return m.Theme.Symbols.Playing
	case sequencer.Paused:
		return m.Theme.Symbols.Paused
	}
	return m.Theme.Symbols.Stopped
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	f := m.Manager.Frame()
	state := m.Manager.State()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())
	ruleStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	firedStyle := lipgloss.NewStyle().Foreground(m.Theme.Altered())

	header := headerStyle.Render(fmt.Sprintf("go-celltone  %s %-7s %3dbpm  1/%-2d  iter:%d  %s",
		m.stateSymbol(state), state, f.Tempo, f.Subdiv, f.Iteration, m.Name))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(widgets.PartRows(m.Theme, f.Parts, f.Length))
	out.WriteString("\n")

	if n := len(f.Records); n > 0 {
		out.WriteString("\n")
		shown := f.Records[max(0, n-logRecords):]
		for _, r := range shown {
			out.WriteString(firedStyle.Render(fmt.Sprintf("%s @%s", r.Rule, r.Pivot)))
			out.WriteString("\n")
		}
		if n > len(shown) {
			out.WriteString(dimStyle.Render(fmt.Sprintf("(%d firings)", n)))
			out.WriteString("\n")
		}
	}

	if m.showRules {
		fired := make(map[*sequencer.Rule]int)
		for _, r := range f.Records {
			fired[r.Rule]++
		}
		out.WriteString("\n")
		for i, r := range f.Rules {
			line := fmt.Sprintf("%2d  %s", i+1, r)
			if n := fired[r]; n > 0 {
				out.WriteString(firedStyle.Render(fmt.Sprintf("%s  x%d", line, n)))
			} else {
				out.WriteString(ruleStyle.Render(line))
			}
			out.WriteString("\n")
		}
	}

	for _, w := range f.Warnings {
		out.WriteString(warnStyle.Render("! " + w))
		out.WriteString("\n")
	}

	if m.status != "" {
		style := dimStyle
		if m.statusErr {
			style = warnStyle
		}
		out.WriteString("\n")
		out.WriteString(style.Render(m.status))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	if m.showHelp {
		out.WriteString(ruleStyle.Render(widgets.RenderKeyHelp(keys)))
	} else {
		out.WriteString(dimStyle.Render(widgets.RenderKeyLine(keys)))
	}
	return out.String()
}
