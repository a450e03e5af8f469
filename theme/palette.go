package theme

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed plasma.gpl
var plasmaGPL string

type RGB [3]uint8

// Palette is an ordered list of colors, dark to bright.
type Palette struct {
	Name   string
	Colors []RGB
}

// Default returns the built-in plasma palette.
func Default() *Palette {
	p, err := ParseGPL(strings.NewReader(plasmaGPL))
	if err != nil {
		panic(fmt.Sprintf("built-in palette: %v", err))
	}
	return p
}

// Load reads a GIMP palette file, or returns Default for an empty path.
func Load(path string) (*Palette, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadGPL(path)
}

func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// ParseGPL reads the GIMP palette format: a header, then one "R G B name"
// line per color. Lines that are not three 8-bit values are skipped.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, val, _ := strings.Cut(line, ":")
		switch {
		case line == "", line[0] == '#', line == "GIMP Palette", key == "Columns":
		case key == "Name":
			p.Name = strings.TrimSpace(val)
		default:
			if c, ok := parseRGB(strings.Fields(line)); ok {
				p.Colors = append(p.Colors, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("no colors found")
	}
	return p, nil
}

func parseRGB(fields []string) (RGB, bool) {
	var c RGB
	if len(fields) < len(c) {
		return c, false
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// Lookup maps 0..1 onto the palette, blending the two nearest colors.
// Values outside the range clamp to the ends.
func (p *Palette) Lookup(pos float64) RGB {
	last := len(p.Colors) - 1
	x := min(max(pos, 0), 1) * float64(last)
	i := min(int(x), max(last-1, 0))
	if last == 0 {
		return p.Colors[0]
	}
	t := x - float64(i)
	var c RGB
	for k := range c {
		a, b := float64(p.Colors[i][k]), float64(p.Colors[i+1][k])
		c[k] = uint8(a + (b-a)*t)
	}
	return c
}

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
