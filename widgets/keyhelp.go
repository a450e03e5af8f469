package widgets

import (
	"fmt"
	"strings"
)

// Key is one key of the help screen. Short is used on the one-line key bar;
// keys without it only appear in the full help.
type Key struct {
	Keys  string
	Short string
	Long  string
}

// KeyGroup is a titled block of keys.
type KeyGroup struct {
	Title string
	Keys  []Key
}

// RenderKeyHelp lays the groups out as an indented list, key column padded
// to the widest key.
func RenderKeyHelp(groups []KeyGroup) string {
	width := 0
	for _, g := range groups {
		for _, k := range g.Keys {
			width = max(width, len(k.Keys))
		}
	}

	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		if g.Title != "" {
			b.WriteString(g.Title)
			b.WriteByte('\n')
		}
		for _, k := range g.Keys {
			fmt.Fprintf(&b, "  %-*s  %s\n", width, k.Keys, k.Long)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderKeyLine joins the short forms: "key:desc  key:desc".
func RenderKeyLine(groups []KeyGroup) string {
	var parts []string
	for _, g := range groups {
		for _, k := range g.Keys {
			if k.Short != "" {
				parts = append(parts, k.Keys+":"+k.Short)
			}
		}
	}
	return strings.Join(parts, "  ")
}
