package sequencer

import "slices"

// CursorState is a frozen copy of one beat participant: its read index and
// its live notes at capture time.
type CursorState struct {
	Index int
	Notes []Note
}

// BeatState is a frozen copy of a beat.
type BeatState map[string]CursorState

// State copies the beat and the live notes of every part in it.
func (b Beat) State() BeatState {
	out := make(BeatState, len(b))
	for name, c := range b {
		cs := CursorState{Index: c.Index}
		if c.Part != nil {
			cs.Notes = c.Part.Notes()
		}
		out[name] = cs
	}
	return out
}

// Record is one rule firing.
type Record struct {
	Rule   *Rule
	Pivot  string
	Before BeatState
	After  BeatState
}

// Log collects firings for one iteration. The driving loop clears it before
// each Iterate. A nil *Log discards everything.
type Log struct {
	records []Record
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a record.
func (l *Log) Add(r Record) {
	if l == nil {
		return
	}
	l.records = append(l.records, r)
}

// Records returns the firings in order.
func (l *Log) Records() []Record {
	if l == nil {
		return nil
	}
	return append([]Record(nil), l.records...)
}

// Len is the number of firings recorded.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// Clear drops all records.
func (l *Log) Clear() {
	if l == nil {
		return
	}
	l.records = nil
}

// Marks returns, per part, the wrapped indices the rule's conditions read
// and its modifiers wrote in this firing. Pivot-relative addresses are
// resolved by walking order, the ring as part names.
func (r Record) Marks(order []string) (conds, mods map[string][]int) {
	pivot := slices.Index(order, r.Pivot)
	resolve := func(a Address) string {
		if !a.IsRelative() {
			return a.Part.Name
		}
		n := len(order)
		return order[((pivot+a.Distance)%n+n)%n]
	}
	mark := func(marks map[string][]int, state BeatState, a Address) {
		name := resolve(a)
		cs, ok := state[name]
		if !ok || len(cs.Notes) == 0 {
			return
		}
		n := len(cs.Notes)
		marks[name] = append(marks[name], ((cs.Index+a.Offset)%n+n)%n)
	}

	conds = make(map[string][]int)
	mods = make(map[string][]int)
	if r.Rule == nil || pivot < 0 {
		return conds, mods
	}
	for _, c := range r.Rule.Conditions {
		mark(conds, r.Before, c.Subject)
		if a, ok := c.Object.Address(); ok {
			mark(conds, r.Before, a)
		}
	}
	for _, m := range r.Rule.Modifiers {
		mark(mods, r.After, m.Subject)
		if a, ok := m.Object.Address(); ok && !m.IsTouch() {
			mark(mods, r.After, a)
		}
	}
	for _, marks := range []map[string][]int{conds, mods} {
		for name, idx := range marks {
			slices.Sort(idx)
			marks[name] = slices.Compact(idx)
		}
	}
	return conds, mods
}
