package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Pause   string // silent slot
	Altered string // slot written this iteration
	Pointer string // start of the playing window

	Playing string
	Paused  string
	Stopped string
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Pause:   "·",
			Altered: "●",
			Pointer: "▶",

			Playing: "▶",
			Paused:  "‖",
			Stopped: "■",
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleAltered = 0.7
	RoleWarning = 0.8
	RoleWindow  = 1.0
)

func (t *Theme) color(role float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(role).Hex())
}

func (t *Theme) BG() lipgloss.Color      { return t.color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.color(RoleMuted) }
func (t *Theme) Altered() lipgloss.Color { return t.color(RoleAltered) }
func (t *Theme) Warning() lipgloss.Color { return t.color(RoleWarning) }
func (t *Theme) Window() lipgloss.Color  { return t.color(RoleWindow) }

// Channel returns a color per MIDI channel, spread over the palette.
func (t *Theme) Channel(ch int) lipgloss.Color {
	return t.color(0.3 + 0.7*float64(ch%16)/15)
}
