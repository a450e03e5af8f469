package sequencer

import (
	"errors"
	"fmt"
	"strings"

	"go-celltone/midi"
)

// ErrEmptyPart is returned when a part is created without notes.
var ErrEmptyPart = errors.New("empty note list")

// Property is one of the rendering properties every part carries.
type Property int

const (
	Channel Property = iota
	Velocity
	Octave
	Transpose
	numProperties
)

type propertyRange struct {
	name     string
	min, max int
	def      int
}

var properties = [numProperties]propertyRange{
	Channel:   {name: "channel", min: 0, max: 127, def: 0},
	Velocity:  {name: "velocity", min: 0, max: 127, def: 100},
	Octave:    {name: "octave", min: 0, max: 10, def: 4},
	Transpose: {name: "transpose", min: -127, max: 127, def: 0},
}

func (p Property) String() string {
	if p < 0 || p >= numProperties {
		return "unknown"
	}
	return properties[p].name
}

// ParseProperty looks a property up by name. "octava" is accepted as an
// alias of octave.
func ParseProperty(name string) (Property, bool) {
	if name == "octava" {
		return Octave, true
	}
	for p, r := range properties {
		if r.name == name {
			return Property(p), true
		}
	}
	return 0, false
}

// Check validates v against the property's range.
func (p Property) Check(v int) error {
	if p < 0 || p >= numProperties {
		return fmt.Errorf("undefined property %d", int(p))
	}
	r := properties[p]
	if v < r.min {
		return fmt.Errorf("%s must be >= %d", r.name, r.min)
	}
	if v > r.max {
		return fmt.Errorf("%s must be <= %d", r.name, r.max)
	}
	return nil
}

// Part is a named, fixed-length cyclic note sequence.
//
// The live buffer and altered mask are only written inside one iteration;
// all reads during that iteration go through the snapshot.
type Part struct {
	Name string

	notes    []Note
	snapshot []Note
	altered  []bool
	original []Note // as loaded, for Reset

	pointer int
	props   [numProperties]int
}

// NewPart creates a part from its initial notes, with default properties.
func NewPart(name string, notes []Note) (*Part, error) {
	if len(notes) == 0 {
		return nil, fmt.Errorf("part %q: %w", name, ErrEmptyPart)
	}
	p := &Part{
		Name:     name,
		notes:    append([]Note(nil), notes...),
		snapshot: append([]Note(nil), notes...),
		altered:  make([]bool, len(notes)),
		original: append([]Note(nil), notes...),
	}
	for i, r := range properties {
		p.props[i] = r.def
	}
	return p, nil
}

// Len is the buffer length; it never changes.
func (p *Part) Len() int {
	return len(p.notes)
}

// Pointer is the read position of the current window.
func (p *Part) Pointer() int {
	return p.pointer
}

func (p *Part) wrap(i int) int {
	n := len(p.notes)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// NoteAt reads the live buffer.
func (p *Part) NoteAt(i int) Note {
	return p.notes[p.wrap(i)]
}

// SnapshotAt reads the pre-iteration copy.
func (p *Part) SnapshotAt(i int) Note {
	return p.snapshot[p.wrap(i)]
}

// SetNoteAt writes the live buffer and marks the slot altered.
func (p *Part) SetNoteAt(i int, n Note) {
	i = p.wrap(i)
	p.notes[i] = n
	p.altered[i] = true
}

// AlteredAt reports whether the slot was written this iteration.
func (p *Part) AlteredAt(i int) bool {
	return p.altered[p.wrap(i)]
}

// ResetAltered clears the altered mask.
func (p *Part) ResetAltered() {
	clear(p.altered)
}

// Snapshot copies the live buffer into the read snapshot.
func (p *Part) Snapshot() {
	copy(p.snapshot, p.notes)
}

// Notes returns a copy of the live buffer.
func (p *Part) Notes() []Note {
	return append([]Note(nil), p.notes...)
}

// Altered returns a copy of the altered mask.
func (p *Part) Altered() []bool {
	return append([]bool(nil), p.altered...)
}

// Original returns a copy of the notes the part was loaded with.
func (p *Part) Original() []Note {
	return append([]Note(nil), p.original...)
}

// Reset restores the loaded notes and rewinds the pointer.
func (p *Part) Reset() {
	copy(p.notes, p.original)
	copy(p.snapshot, p.original)
	clear(p.altered)
	p.pointer = 0
}

func (p *Part) advance(n int) {
	p.pointer = p.wrap(p.pointer + n)
}

// Property returns the current value of a property.
func (p *Part) Property(prop Property) int {
	return p.props[prop]
}

// SetProperty validates and sets a property. Out-of-range values leave the
// property unchanged.
func (p *Part) SetProperty(prop Property, v int) error {
	if err := prop.Check(v); err != nil {
		return err
	}
	p.props[prop] = v
	return nil
}

// SetPropertyByName is SetProperty keyed by the property's source name.
func (p *Part) SetPropertyByName(name string, v int) error {
	prop, ok := ParseProperty(name)
	if !ok {
		return fmt.Errorf("undefined property '%s'", name)
	}
	return p.SetProperty(prop, v)
}

// RenderedNoteAt returns the note to send for slot i of the live buffer, or
// false for a pause.
func (p *Part) RenderedNoteAt(i int) (midi.Note, bool) {
	n := p.NoteAt(i)
	if n.IsPause() {
		return midi.Note{}, false
	}
	return midi.Note{
		Pitch:    int(n) + p.props[Transpose] + 12*p.props[Octave],
		Channel:  p.props[Channel],
		Velocity: p.props[Velocity],
	}, true
}

func (p *Part) String() string {
	names := make([]string, len(p.notes))
	for i, n := range p.notes {
		names[i] = n.String()
	}
	return fmt.Sprintf("%s = [%s]", p.Name, strings.Join(names, ", "))
}
