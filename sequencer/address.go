package sequencer

import (
	"errors"
	"fmt"
)

// ErrBadOrder is returned for a ring order that is empty, repeats a part,
// or does not match the engine's parts.
var ErrBadOrder = errors.New("invalid part order")

// Ring closes the configured part order into a cycle. Neighbours are derived
// from positions, so a reorder only needs a fresh LinkRing.
type Ring struct {
	parts []*Part
	pos   map[*Part]int
}

// LinkRing builds the ring topology for an ordered part list.
func LinkRing(order []*Part) (*Ring, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: no parts", ErrBadOrder)
	}
	r := &Ring{
		parts: append([]*Part(nil), order...),
		pos:   make(map[*Part]int, len(order)),
	}
	for i, p := range order {
		if p == nil {
			return nil, fmt.Errorf("%w: nil part at %d", ErrBadOrder, i)
		}
		if _, dup := r.pos[p]; dup {
			return nil, fmt.Errorf("%w: part '%s' listed twice", ErrBadOrder, p.Name)
		}
		r.pos[p] = i
	}
	return r, nil
}

// Parts returns the ring order.
func (r *Ring) Parts() []*Part {
	return append([]*Part(nil), r.parts...)
}

// Len is the number of parts in the ring.
func (r *Ring) Len() int {
	return len(r.parts)
}

// Contains reports whether p is linked into the ring.
func (r *Ring) Contains(p *Part) bool {
	_, ok := r.pos[p]
	return ok
}

// Walk returns the part d steps away from p: successors for positive d,
// predecessors for negative d. Any magnitude wraps around the ring.
func (r *Ring) Walk(p *Part, d int) *Part {
	i, ok := r.pos[p]
	if !ok {
		panic(fmt.Sprintf("sequencer: part '%s' is not in the ring", p.Name))
	}
	n := len(r.parts)
	j := (i + d) % n
	if j < 0 {
		j += n
	}
	return r.parts[j]
}

// Next is the ring successor of p.
func (r *Ring) Next(p *Part) *Part {
	return r.Walk(p, 1)
}

// Prev is the ring predecessor of p.
func (r *Ring) Prev(p *Part) *Part {
	return r.Walk(p, -1)
}

// Address points at a slot relative to a part's current read index. It is
// absolute when Part is set, otherwise pivot-relative by ring Distance.
type Address struct {
	Part     *Part
	Distance int
	Offset   int
}

// Absolute addresses part[offset].
func Absolute(p *Part, offset int) Address {
	return Address{Part: p, Offset: offset}
}

// Relative addresses <distance>[offset], resolved against a pivot.
func Relative(distance, offset int) Address {
	return Address{Distance: distance, Offset: offset}
}

// IsRelative reports whether the address needs a pivot.
func (a Address) IsRelative() bool {
	return a.Part == nil
}

// Bind resolves a pivot-relative address into an absolute one.
func (a Address) Bind(r *Ring, pivot *Part) Address {
	if !a.IsRelative() {
		return a
	}
	return Absolute(r.Walk(pivot, a.Distance), a.Offset)
}

func (a Address) String() string {
	if a.IsRelative() {
		return fmt.Sprintf("<%d>[%d]", a.Distance, a.Offset)
	}
	return fmt.Sprintf("%s[%d]", a.Part.Name, a.Offset)
}

// Operand is the right-hand side of a condition or modifier: either a slot
// reference or a literal note.
type Operand struct {
	ref  *Address
	note Note
}

// Literal wraps a note.
func Literal(n Note) Operand {
	return Operand{note: n}
}

// Ref wraps an address.
func Ref(a Address) Operand {
	return Operand{ref: &a}
}

// Address returns the referenced address, if any.
func (o Operand) Address() (Address, bool) {
	if o.ref == nil {
		return Address{}, false
	}
	return *o.ref, true
}

func (o Operand) String() string {
	if o.ref != nil {
		return o.ref.String()
	}
	return o.note.String()
}

// Cursor is a part's read index for one beat.
type Cursor struct {
	Part  *Part
	Index int
}

// Beat maps each participating part's name to its read index at one time
// offset of the current iteration.
type Beat map[string]Cursor

// Scope is everything needed to evaluate a clause: the ring for relative
// addresses, the beat, and the pivot.
type Scope struct {
	Ring  *Ring
	Beat  Beat
	Pivot *Part
}

// slot resolves an address to the part and real index it reads or writes.
func (s Scope) slot(a Address) (*Part, int) {
	if a.IsRelative() {
		a = a.Bind(s.Ring, s.Pivot)
	}
	return a.Part, s.Beat[a.Part.Name].Index + a.Offset
}

// read returns the operand's value from the snapshot, or its literal.
func (s Scope) read(o Operand) Note {
	if o.ref == nil {
		return o.note
	}
	p, i := s.slot(*o.ref)
	return p.SnapshotAt(i)
}
