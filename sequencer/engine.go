package sequencer

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go-celltone/debug"
	"go-celltone/midi"
)

var (
	// ErrNoParts is returned for a program without parts.
	ErrNoParts = errors.New("no parts to play")
	// ErrUnknownPart is returned when a rule or order names a part the
	// program does not define.
	ErrUnknownPart = errors.New("undefined part")
)

// Program is everything the parser hands to the engine.
type Program struct {
	Parts  map[string]*Part
	Order  []*Part // ring order: configured, else declaration order
	Rules  []*Rule
	Config Config
}

// Engine rewrites parts by rules, one iteration at a time, and renders the
// current window of every part as a schedule.
//
// Engine is not safe for concurrent use; Manager serializes access.
type Engine struct {
	parts  map[string]*Part
	order  []*Part
	ring   *Ring
	rules  []*Rule
	config Config

	length    int // iteration length
	iteration int

	metrics *Metrics
}

// NewEngine validates the program and builds an engine around it.
func NewEngine(prog *Program) (*Engine, error) {
	ring, err := checkProgram(prog)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		parts:  prog.Parts,
		order:  ring.Parts(),
		ring:   ring,
		rules:  prog.Rules,
		config: prog.Config,
	}
	e.length = iterationLength(e.order, e.config)
	return e, nil
}

// checkProgram rejects anything the sweep could trip over, before any state
// is built from it.
func checkProgram(prog *Program) (*Ring, error) {
	if prog == nil || len(prog.Parts) == 0 {
		return nil, ErrNoParts
	}
	for name, p := range prog.Parts {
		if p == nil || p.Len() == 0 {
			return nil, fmt.Errorf("part '%s': %w", name, ErrEmptyPart)
		}
		if p.Name != name {
			return nil, fmt.Errorf("part '%s' registered as '%s'", p.Name, name)
		}
	}
	if len(prog.Order) != len(prog.Parts) {
		return nil, fmt.Errorf("%w: order has %d parts, program has %d", ErrBadOrder, len(prog.Order), len(prog.Parts))
	}
	for _, p := range prog.Order {
		if p == nil || prog.Parts[p.Name] != p {
			return nil, fmt.Errorf("%w: order names a part outside the program", ErrBadOrder)
		}
	}
	ring, err := LinkRing(prog.Order)
	if err != nil {
		return nil, err
	}
	for i, r := range prog.Rules {
		for _, name := range r.Parts() {
			if _, ok := prog.Parts[name]; !ok {
				return nil, fmt.Errorf("rule %d: %w '%s'", i+1, ErrUnknownPart, name)
			}
		}
		if !ownsParts(r, prog.Parts) {
			return nil, fmt.Errorf("rule %d: addresses a part outside the program", i+1)
		}
	}
	return ring, nil
}

func ownsParts(r *Rule, parts map[string]*Part) bool {
	own := func(a Address) bool {
		return a.IsRelative() || parts[a.Part.Name] == a.Part
	}
	for _, c := range r.Conditions {
		if !own(c.Subject) {
			return false
		}
		if a, ok := c.Object.Address(); ok && !own(a) {
			return false
		}
	}
	for _, m := range r.Modifiers {
		if !own(m.Subject) {
			return false
		}
		if a, ok := m.Object.Address(); ok && !own(a) {
			return false
		}
	}
	return true
}

func iterationLength(order []*Part, c Config) int {
	if v, ok := c.Get(IterationLength); ok {
		return v
	}
	n := 0
	for _, p := range order {
		n = max(n, p.Len())
	}
	return n
}

// SetMetrics attaches prometheus metrics; nil detaches.
func (e *Engine) SetMetrics(m *Metrics) {
	e.metrics = m
}

// Parts returns the parts in ring order.
func (e *Engine) Parts() []*Part {
	return append([]*Part(nil), e.order...)
}

// Part looks a part up by name.
func (e *Engine) Part(name string) (*Part, bool) {
	p, ok := e.parts[name]
	return p, ok
}

// Rules returns the rules in declaration order.
func (e *Engine) Rules() []*Rule {
	return append([]*Rule(nil), e.rules...)
}

// Ring returns the ring topology.
func (e *Engine) Ring() *Ring {
	return e.ring
}

// Config returns the program options.
func (e *Engine) Config() Config {
	return e.config
}

// IterationLength is the number of time offsets per iteration.
func (e *Engine) IterationLength() int {
	return e.length
}

// Iteration counts completed iterations since load or reset.
func (e *Engine) Iteration() int {
	return e.iteration
}

// RenderSchedule renders the current window: for every time offset, the
// rendered notes of every part that is not pausing there.
func (e *Engine) RenderSchedule() midi.Schedule {
	sched := make(midi.Schedule, e.length)
	for t := 0; t < e.length; t++ {
		for _, p := range e.order {
			if n, ok := p.RenderedNoteAt(p.pointer + t); ok {
				sched[t] = append(sched[t], n)
			}
		}
	}
	return sched
}

// beats builds the beat for every time offset of this iteration. Pointers
// do not move during the sweep, so they are built once.
func (e *Engine) beats() []Beat {
	beats := make([]Beat, e.length)
	for t := range beats {
		b := make(Beat, len(e.order))
		for _, p := range e.order {
			b[p.Name] = Cursor{Part: p, Index: p.wrap(p.pointer + t)}
		}
		beats[t] = b
	}
	return beats
}

// Iterate runs one rewrite-and-advance cycle. Firings are recorded in log,
// which may be nil.
//
// The sweep order is rule, then pivot in ring order, then time offset; the
// first combination to write a slot owns it for the rest of the iteration.
func (e *Engine) Iterate(log *Log) {
	start := time.Now()

	for _, p := range e.order {
		p.ResetAltered()
	}
	for _, p := range e.order {
		p.Snapshot()
	}

	beats := e.beats()
	fired := 0
	for ri, r := range e.rules {
		for _, pivot := range e.order {
			for _, beat := range beats {
				if r.Apply(Scope{Ring: e.ring, Beat: beat, Pivot: pivot}, log) {
					fired++
					if e.metrics != nil {
						e.metrics.RuleFirings.WithLabelValues(strconv.Itoa(ri + 1)).Inc()
					}
				}
			}
		}
	}

	for _, p := range e.order {
		p.advance(e.length)
	}
	e.iteration++

	if e.metrics != nil {
		e.metrics.Iterations.Inc()
		e.metrics.IterationDuration.Observe(time.Since(start).Seconds())
	}
	debug.Log("engine", "iteration %d: %d firings in %s", e.iteration, fired, time.Since(start))
}

// ResetToOriginal restores every part to the notes it was loaded with and
// rewinds all pointers.
func (e *Engine) ResetToOriginal() {
	for _, p := range e.order {
		p.Reset()
	}
	e.iteration = 0
	debug.Log("engine", "reset to original")
}

// Reload swaps in a new program. Parts whose loaded notes are unchanged keep
// their identity, so their pointer and edits survive; they take the new
// properties. Nothing is modified unless the whole program is valid.
func (e *Engine) Reload(prog *Program) error {
	if _, err := checkProgram(prog); err != nil {
		return err
	}

	final := make(map[string]*Part, len(prog.Parts))
	kept := make(map[*Part]*Part)
	for name, np := range prog.Parts {
		if op, ok := e.parts[name]; ok && slices.Equal(op.original, np.original) {
			final[name] = op
			kept[np] = op
			continue
		}
		final[name] = np
	}

	order := make([]*Part, len(prog.Order))
	for i, p := range prog.Order {
		order[i] = final[p.Name]
	}
	ring, err := LinkRing(order)
	if err != nil {
		return err
	}
	rules := make([]*Rule, len(prog.Rules))
	for i, r := range prog.Rules {
		if rules[i], err = r.rebind(final); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}

	for np, op := range kept {
		op.props = np.props
	}
	e.parts = final
	e.order = order
	e.ring = ring
	e.rules = rules
	e.config = prog.Config
	e.length = iterationLength(order, prog.Config)
	debug.Log("engine", "reloaded: %d parts (%d kept), %d rules", len(final), len(kept), len(rules))
	return nil
}

// PartView is a read-only copy of a part for display.
type PartView struct {
	Name    string
	Notes   []Note
	Altered []bool
	Pointer int
}

// Views copies every part in ring order.
func (e *Engine) Views() []PartView {
	views := make([]PartView, len(e.order))
	for i, p := range e.order {
		views[i] = PartView{
			Name:    p.Name,
			Notes:   p.Notes(),
			Altered: p.Altered(),
			Pointer: p.pointer,
		}
	}
	return views
}
