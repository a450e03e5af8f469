package sequencer

import "fmt"

// Condition compares a slot against another slot or a literal.
type Condition struct {
	Subject Address
	Cmp     Comparator
	Object  Operand
}

// Matches evaluates the condition against the snapshot.
func (c Condition) Matches(s Scope) bool {
	p, i := s.slot(c.Subject)
	return c.Cmp.Compare(p.SnapshotAt(i), s.read(c.Object))
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Subject, c.Cmp, c.Object)
}

// Modifier writes a value into a slot. A modifier whose object is its own
// subject touches the slot without changing it, which still locks it.
type Modifier struct {
	Subject Address
	Object  Operand
}

// Touch returns a modifier that locks a slot without changing it.
func Touch(a Address) Modifier {
	return Modifier{Subject: a, Object: Ref(a)}
}

// IsTouch reports whether the modifier rewrites its own slot.
func (m Modifier) IsTouch() bool {
	a, ok := m.Object.Address()
	return ok && a == m.Subject
}

// CanAlter reports whether the target slot is still unwritten this
// iteration.
func (m Modifier) CanAlter(s Scope) bool {
	p, i := s.slot(m.Subject)
	return !p.AlteredAt(i)
}

// Apply writes the object value, read from the snapshot, into the live slot.
func (m Modifier) Apply(s Scope) {
	v := s.read(m.Object)
	p, i := s.slot(m.Subject)
	p.SetNoteAt(i, v)
}

func (m Modifier) String() string {
	if m.IsTouch() {
		return m.Subject.String()
	}
	return fmt.Sprintf("%s = %s", m.Subject, m.Object)
}
