package sequencer

import (
	"fmt"
	"strings"
)

// Rule fires when every condition matches and every modifier target is
// still free. It then applies all of its modifiers, never a subset.
type Rule struct {
	Conditions []Condition
	Modifiers  []Modifier
	Line       int // source line, 0 if built in code
}

// Apply tries to fire the rule for one beat and pivot. It returns whether
// the rule fired; a firing is recorded in log when log is non-nil.
func (r *Rule) Apply(s Scope, log *Log) bool {
	for _, c := range r.Conditions {
		if !c.Matches(s) {
			return false
		}
	}
	for _, m := range r.Modifiers {
		if !m.CanAlter(s) {
			return false
		}
	}

	var before BeatState
	if log != nil {
		before = s.Beat.State()
	}
	for _, m := range r.Modifiers {
		m.Apply(s)
	}
	if log != nil {
		pivot := ""
		if s.Pivot != nil {
			pivot = s.Pivot.Name
		}
		log.Add(Record{
			Rule:   r,
			Pivot:  pivot,
			Before: before,
			After:  s.Beat.State(),
		})
	}
	return true
}

// Parts returns the names of the parts the rule addresses absolutely.
func (r *Rule) Parts() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(a Address) {
		if a.IsRelative() || seen[a.Part.Name] {
			return
		}
		seen[a.Part.Name] = true
		names = append(names, a.Part.Name)
	}
	for _, c := range r.Conditions {
		add(c.Subject)
		if a, ok := c.Object.Address(); ok {
			add(a)
		}
	}
	for _, m := range r.Modifiers {
		add(m.Subject)
		if a, ok := m.Object.Address(); ok {
			add(a)
		}
	}
	return names
}

// rebind returns a copy of the rule whose absolute addresses point at the
// parts of the same name in parts.
func (r *Rule) rebind(parts map[string]*Part) (*Rule, error) {
	fix := func(a Address) (Address, error) {
		if a.IsRelative() {
			return a, nil
		}
		p, ok := parts[a.Part.Name]
		if !ok {
			return a, fmt.Errorf("%w: '%s'", ErrUnknownPart, a.Part.Name)
		}
		a.Part = p
		return a, nil
	}
	fixOperand := func(o Operand) (Operand, error) {
		a, ok := o.Address()
		if !ok {
			return o, nil
		}
		a, err := fix(a)
		if err != nil {
			return o, err
		}
		return Ref(a), nil
	}

	out := &Rule{
		Conditions: make([]Condition, len(r.Conditions)),
		Modifiers:  make([]Modifier, len(r.Modifiers)),
		Line:       r.Line,
	}
	var err error
	for i, c := range r.Conditions {
		if c.Subject, err = fix(c.Subject); err != nil {
			return nil, err
		}
		if c.Object, err = fixOperand(c.Object); err != nil {
			return nil, err
		}
		out.Conditions[i] = c
	}
	for i, m := range r.Modifiers {
		if m.Subject, err = fix(m.Subject); err != nil {
			return nil, err
		}
		if m.Object, err = fixOperand(m.Object); err != nil {
			return nil, err
		}
		out.Modifiers[i] = m
	}
	return out, nil
}

func (r *Rule) String() string {
	lhs := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		lhs[i] = c.String()
	}
	rhs := make([]string, len(r.Modifiers))
	for i, m := range r.Modifiers {
		rhs[i] = m.String()
	}
	return fmt.Sprintf("{%s} => {%s}", strings.Join(lhs, ", "), strings.Join(rhs, ", "))
}
