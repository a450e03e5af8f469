package sequencer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-celltone/midi"
)

func program(order []*Part, rules ...*Rule) *Program {
	parts := make(map[string]*Part, len(order))
	for _, p := range order {
		parts[p.Name] = p
	}
	return &Program{Parts: parts, Order: order, Rules: rules, Config: DefaultConfig()}
}

func mustEngine(t *testing.T, prog *Program) *Engine {
	t.Helper()
	e, err := NewEngine(prog)
	require.NoError(t, err)
	return e
}

// shiftRule moves a note one step later into a following pause.
func shiftRule(a *Part) *Rule {
	return &Rule{
		Conditions: []Condition{
			{Absolute(a, -1), NotEqual, Literal(_p)},
			{Absolute(a, 0), Equal, Literal(_p)},
		},
		Modifiers: []Modifier{
			{Absolute(a, -1), Literal(_p)},
			{Absolute(a, 0), Ref(Absolute(a, -1))},
		},
	}
}

func pitches(notes []midi.Note) []int {
	out := make([]int, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Pitch)
	}
	return out
}

func TestEngine_RenderSchedule(t *testing.T) {
	a := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 0, 3, _p)
	for _, p := range []*Part{a, b} {
		require.NoError(t, p.SetProperty(Octave, 0))
	}
	require.NoError(t, b.SetProperty(Channel, 1))

	e := mustEngine(t, program([]*Part{a, b}))
	require.Equal(t, 8, e.IterationLength())

	sched := e.RenderSchedule()
	require.Len(t, sched, 8)

	want := [][]int{{0, 0}, {3}, {1}, {0}, {0, 3}, {}, {3, 0}, {3}}
	for i, w := range want {
		assert.Equal(t, w, pitches(sched[i]), "offset %d", i)
	}
	assert.Equal(t, []midi.Note{
		{Pitch: 0, Channel: 0, Velocity: 100},
		{Pitch: 0, Channel: 1, Velocity: 100},
	}, sched[0])
}

func TestEngine_IterateSingleRule(t *testing.T) {
	a := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 0, 3, _p)
	e := mustEngine(t, program([]*Part{a, b}, shiftRule(a)))

	log := NewLog()
	e.Iterate(log)

	assert.Equal(t, []Note{_p, 0, _p, 1, _p, 0, _p, 3}, a.Notes())
	assert.Equal(t, []Note{0, 3, _p}, b.Notes())
	assert.Equal(t, 0, a.Pointer())
	assert.Equal(t, 2, b.Pointer())
	assert.Equal(t, 1, e.Iteration())

	require.Equal(t, 4, log.Len())
	first := log.Records()[0]
	assert.Equal(t, "a", first.Pivot)
	assert.Equal(t, 1, first.Before["a"].Index)
	assert.Equal(t, []Note{0, _p, 1, _p, 0, _p, 3, _p}, first.Before["a"].Notes)
	assert.Equal(t, []Note{_p, 0, 1, _p, 0, _p, 3, _p}, first.After["a"].Notes)
}

func TestEngine_IterateMultipleRules(t *testing.T) {
	a := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 0, 3, _p)
	hold := &Rule{
		Conditions: []Condition{
			{Absolute(a, 0), Equal, Ref(Absolute(b, 0))},
			{Absolute(a, 1), Equal, Literal(_p)},
		},
		Modifiers: []Modifier{Touch(Absolute(a, 0))},
	}
	e := mustEngine(t, program([]*Part{a, b}, hold, shiftRule(a)))

	e.Iterate(nil)

	assert.Equal(t, []Note{0, _p, _p, 1, _p, 0, _p, 3}, a.Notes())
	assert.Equal(t, []Note{0, 3, _p}, b.Notes())
	assert.Equal(t, 0, a.Pointer())
	assert.Equal(t, 2, b.Pointer())
}

func TestEngine_ConflictGatingWholeSweep(t *testing.T) {
	a := mustPart(t, "a", 1, 1, 1, 1, 1)
	rule := &Rule{
		Conditions: []Condition{{Absolute(a, 0), Equal, Literal(1)}},
		Modifiers: []Modifier{
			{Absolute(a, 0), Literal(2)},
			{Absolute(a, 1), Literal(_p)},
		},
	}
	e := mustEngine(t, program([]*Part{a}, rule))
	e.Iterate(nil)

	assert.Equal(t, []Note{2, _p, 2, _p, 1}, a.Notes())
	assert.Equal(t, []bool{true, true, true, true, false}, a.Altered())
}

func TestEngine_ReadsSnapshotDuringSweep(t *testing.T) {
	a := mustPart(t, "a", 1, 0, 0, 0)
	spread := &Rule{
		Conditions: []Condition{{Absolute(a, 0), Equal, Literal(1)}},
		Modifiers:  []Modifier{{Absolute(a, 1), Literal(1)}},
	}
	e := mustEngine(t, program([]*Part{a}, spread))
	e.Iterate(nil)

	// a[1] is written but a[2] was decided on the old value
	assert.Equal(t, []Note{1, 1, 0, 0}, a.Notes())

	e.Iterate(nil)
	assert.Equal(t, []Note{1, 1, 1, 0}, a.Notes())
	assert.Equal(t, []bool{false, true, true, false}, a.Altered())
}

func TestEngine_RelativeRules(t *testing.T) {
	a := mustPart(t, "a", 1, _p, _p)
	b := mustPart(t, "b", _p, _p)
	c := mustPart(t, "c", 1, _p, _p, _p)
	require.NoError(t, b.SetProperty(Channel, 1))
	require.NoError(t, c.SetProperty(Channel, 2))
	for _, p := range []*Part{a, b, c} {
		require.NoError(t, p.SetProperty(Octave, 0))
	}
	rule := &Rule{
		Conditions: []Condition{
			{Relative(0, 0), Equal, Ref(Relative(1, 0))},
			{Relative(0, 0), Equal, Literal(1)},
		},
		Modifiers: []Modifier{
			{Relative(0, 0), Literal(_p)},
			{Relative(2, 0), Literal(1)},
		},
	}
	e := mustEngine(t, program([]*Part{a, b, c}, rule))

	channels := func() []map[int]int {
		var out []map[int]int
		for _, step := range e.RenderSchedule() {
			m := map[int]int{}
			for _, n := range step {
				m[n.Channel] = n.Pitch
			}
			out = append(out, m)
		}
		return out
	}

	assert.Equal(t, []map[int]int{{0: 1, 2: 1}, {}, {}, {0: 1}}, channels())

	e.Iterate(nil)
	assert.Equal(t, []map[int]int{{1: 1}, {}, {0: 1, 1: 1}, {}}, channels())

	e.Iterate(nil)
	assert.Equal(t, []map[int]int{{1: 1}, {}, {1: 1, 2: 1}, {}}, channels())
}

func TestEngine_InvariantsAcrossIterations(t *testing.T) {
	a := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 0, 3, _p)
	c := mustPart(t, "c", 5)
	prog := program([]*Part{a, b, c}, shiftRule(a))
	require.NoError(t, prog.Config.Set(IterationLength, 5))
	e := mustEngine(t, prog)

	pointers := map[*Part]int{}
	for i := 0; i < 7; i++ {
		e.Iterate(nil)
		for _, p := range e.Parts() {
			pointers[p] = (pointers[p] + 5) % p.Len()
			assert.Equal(t, pointers[p], p.Pointer(), "part %s iteration %d", p.Name, i)
		}
		assert.Equal(t, 8, a.Len())
		assert.Equal(t, 3, b.Len())
		assert.Equal(t, 1, c.Len())
		assert.Len(t, e.RenderSchedule(), 5)
	}
}

func TestEngine_ResetToOriginal(t *testing.T) {
	a := mustPart(t, "a", 0, _p, 1, _p)
	b := mustPart(t, "b", 2, 3, 4)
	e := mustEngine(t, program([]*Part{a, b}, shiftRule(a)))

	e.Iterate(nil)
	e.Iterate(nil)
	require.NotEqual(t, a.Original(), a.Notes())

	e.ResetToOriginal()
	assert.Equal(t, []Note{0, _p, 1, _p}, a.Notes())
	assert.Equal(t, 0, a.Pointer())
	assert.Equal(t, 0, b.Pointer())
	assert.Equal(t, 0, e.Iteration())
}

func TestNewEngine_Invalid(t *testing.T) {
	a := mustPart(t, "a", 0)
	b := mustPart(t, "b", 0)
	stray := mustPart(t, "a", 0)

	_, err := NewEngine(&Program{Config: DefaultConfig()})
	assert.ErrorIs(t, err, ErrNoParts)

	prog := program([]*Part{a, b})
	prog.Order = []*Part{a}
	_, err = NewEngine(prog)
	assert.ErrorIs(t, err, ErrBadOrder)

	prog = program([]*Part{a, b})
	prog.Order = []*Part{a, stray}
	_, err = NewEngine(prog)
	assert.ErrorIs(t, err, ErrBadOrder)

	c := mustPart(t, "c", 0)
	_, err = NewEngine(program([]*Part{a, b}, &Rule{Modifiers: []Modifier{Touch(Absolute(c, 0))}}))
	assert.ErrorIs(t, err, ErrUnknownPart)

	_, err = NewEngine(program([]*Part{a, b}, &Rule{Modifiers: []Modifier{Touch(Absolute(stray, 0))}}))
	assert.Error(t, err)
}

func TestEngine_ReloadKeepsUnchangedParts(t *testing.T) {
	a := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 0, 3, _p)
	e := mustEngine(t, program([]*Part{a, b}, shiftRule(a)))
	e.Iterate(nil)
	b.advance(1)

	a2 := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	require.NoError(t, a2.SetProperty(Velocity, 64))
	b2 := mustPart(t, "b", 7, 8)
	d := mustPart(t, "d", 9)
	require.NoError(t, e.Reload(program([]*Part{d, b2, a2}, shiftRule(a2))))

	got, ok := e.Part("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, []Note{_p, 0, _p, 1, _p, 0, _p, 3}, got.Notes())
	assert.Equal(t, 64, got.Property(Velocity))

	got, _ = e.Part("b")
	assert.Same(t, b2, got)
	assert.Equal(t, 0, got.Pointer())

	assert.Equal(t, []*Part{d, b2, a}, e.Parts())
	assert.Same(t, b2, e.Ring().Next(d))
	assert.Equal(t, 8, e.IterationLength())

	// rules now write the kept part
	assert.Same(t, a, e.Rules()[0].Modifiers[0].Subject.Part)
	e.Iterate(nil)
	assert.Equal(t, []Note{3, _p, 0, _p, 1, _p, 0, _p}, a.Notes())
}

func TestEngine_ReloadInvalidLeavesState(t *testing.T) {
	a := mustPart(t, "a", 1, 2)
	e := mustEngine(t, program([]*Part{a}))

	ghost := mustPart(t, "ghost", 0)
	a2 := mustPart(t, "a", 1, 2)
	err := e.Reload(program([]*Part{a2}, &Rule{Modifiers: []Modifier{Touch(Absolute(ghost, 0))}}))
	require.ErrorIs(t, err, ErrUnknownPart)

	got, _ := e.Part("a")
	assert.Same(t, a, got)
	assert.Empty(t, e.Rules())
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	a := mustPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 0, 3, _p)
	e := mustEngine(t, program([]*Part{a, b}, shiftRule(a)))
	e.SetMetrics(m)

	e.Iterate(nil)
	e.Iterate(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations))
	// the second pass finds a=[_,0,_,1,...] which shifts four times again
	assert.Equal(t, 8.0, testutil.ToFloat64(m.RuleFirings.WithLabelValues("1")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.IterationDuration))
}

func TestEngine_Views(t *testing.T) {
	a := mustPart(t, "a", 1, _p)
	e := mustEngine(t, program([]*Part{a}))

	views := e.Views()
	require.Len(t, views, 1)
	assert.Equal(t, PartView{Name: "a", Notes: []Note{1, _p}, Altered: []bool{false, false}, Pointer: 0}, views[0])

	// views are copies
	views[0].Notes[0] = 9
	assert.Equal(t, Note(1), a.NoteAt(0))
}
