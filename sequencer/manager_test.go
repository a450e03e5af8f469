package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-celltone/midi"
)

// gatedOutput completes one step per release call.
type gatedOutput struct {
	mu            sync.Mutex
	cur           []int
	played        [][]int
	entered       int
	tempo, subdiv int

	gate chan struct{}
}

func newGatedOutput() *gatedOutput {
	return &gatedOutput{gate: make(chan struct{})}
}

func (o *gatedOutput) NoteOn(n midi.Note) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cur = append(o.cur, n.Pitch)
	return nil
}

func (o *gatedOutput) NoteOff(midi.Note) error { return nil }

func (o *gatedOutput) Advance(ctx context.Context) error {
	o.mu.Lock()
	o.entered++
	o.mu.Unlock()

	select {
	case <-ctx.Done():
		o.mu.Lock()
		o.cur = nil
		o.mu.Unlock()
		return ctx.Err()
	case <-o.gate:
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.played = append(o.played, o.cur)
	o.cur = nil
	return nil
}

func (o *gatedOutput) SetTiming(tempo, subdiv int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tempo, o.subdiv = tempo, subdiv
}

func (o *gatedOutput) release(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case o.gate <- struct{}{}:
		case <-time.After(time.Second):
			t.Fatalf("output never advanced (step %d of %d)", i+1, n)
		}
	}
}

func (o *gatedOutput) waiting() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.entered
}

func (o *gatedOutput) Played() [][]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]int(nil), o.played...)
}

// countOutput never blocks.
type countOutput struct {
	ons, steps int
	fail       error
}

func (o *countOutput) NoteOn(midi.Note) error {
	o.ons++
	return o.fail
}
func (o *countOutput) NoteOff(midi.Note) error { return nil }
func (o *countOutput) Advance(ctx context.Context) error {
	o.steps++
	return ctx.Err()
}

func lowPart(t *testing.T, name string, notes ...Note) *Part {
	t.Helper()
	p := mustPart(t, name, notes...)
	require.NoError(t, p.SetProperty(Octave, 0))
	return p
}

func startManager(t *testing.T, m *Manager) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not return")
		}
	}
}

func (m *Manager) leftoverLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leftover)
}

func (m *Manager) settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel == nil && !m.resetPending
}

func TestManager_PlaysAndIterates(t *testing.T) {
	a := lowPart(t, "a", 0, 1)
	e := mustEngine(t, program([]*Part{a}))
	out := newGatedOutput()
	m := NewManager(e, out)
	stop := startManager(t, m)
	defer stop()

	m.Play()
	out.release(t, 4)

	require.Eventually(t, func() bool { return len(out.Played()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, [][]int{{0}, {1}, {0}, {1}}, out.Played())
	require.Eventually(t, func() bool { return m.Frame().Iteration >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, Playing, m.State())
}

func TestManager_PauseResumesLeftover(t *testing.T) {
	a := lowPart(t, "a", 0, 1, 2, 3)
	e := mustEngine(t, program([]*Part{a}))
	out := newGatedOutput()
	m := NewManager(e, out)
	stop := startManager(t, m)
	defer stop()

	m.Play()
	out.release(t, 1)
	require.Eventually(t, func() bool { return out.waiting() == 2 }, time.Second, time.Millisecond)

	m.Pause()
	require.Eventually(t, func() bool { return m.leftoverLen() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, Paused, m.State())
	assert.Equal(t, 1, m.Frame().Iteration)

	m.Play()
	out.release(t, 3)
	require.Eventually(t, func() bool { return len(out.Played()) == 4 }, time.Second, time.Millisecond)
	// the leftover is played without another iteration, then a fresh window
	assert.Equal(t, [][]int{{0}, {2}, {3}, {0}}, out.Played())
	// the fresh window's frame was published before its iteration ran
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return e.Iteration() == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, m.Frame().Iteration)
}

func TestManager_StopResets(t *testing.T) {
	a := lowPart(t, "a", 0, 1, 2)
	prog := program([]*Part{a})
	require.NoError(t, prog.Config.Set(IterationLength, 2))
	e := mustEngine(t, prog)
	out := newGatedOutput()
	m := NewManager(e, out)
	stop := startManager(t, m)
	defer stop()

	m.Play()
	out.release(t, 1)
	require.Eventually(t, func() bool { return out.waiting() == 2 }, time.Second, time.Millisecond)

	m.Stop()
	require.Eventually(t, m.settled, time.Second, time.Millisecond)

	f := m.Frame()
	assert.Equal(t, Stopped, f.State)
	assert.Equal(t, 0, f.Iteration)
	assert.Nil(t, f.Schedule)
	assert.Equal(t, 0, f.Parts[0].Pointer)
	assert.Zero(t, m.leftoverLen())

	// playing again starts from the top
	m.Play()
	out.release(t, 1)
	require.Eventually(t, func() bool { return len(out.Played()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, [][]int{{0}, {0}}, out.Played())
}

func TestManager_StopWhileIdle(t *testing.T) {
	a := lowPart(t, "a", _p, 1)
	e := mustEngine(t, program([]*Part{a}, shiftRule(a)))
	m := NewManager(e, &countOutput{})

	require.NoError(t, m.Bounce(context.Background(), 1))
	require.Equal(t, []Note{1, _p}, a.Notes())

	// stopping a stopped manager does nothing
	m.Stop()
	assert.Equal(t, []Note{1, _p}, a.Notes())

	m.Play()
	m.Stop()
	assert.Equal(t, []Note{_p, 1}, a.Notes())
	assert.Equal(t, 0, m.Frame().Iteration)
}

func TestManager_Bounce(t *testing.T) {
	a := lowPart(t, "a", 0, _p, 1, _p, 0, _p, 3, _p)
	b := mustPart(t, "b", 100, 3, _p)
	require.NoError(t, b.SetProperty(Octave, 10))
	e := mustEngine(t, program([]*Part{a, b}, shiftRule(a)))

	out := &countOutput{}
	m := NewManager(e, out)
	m.SetMetrics(NewMetrics(prometheus.NewRegistry()))

	var frames []Frame
	m.SetOnFrame(func(f Frame) { frames = append(frames, f) })
	var warned int
	m.SetOnWarn(func(midi.Note, error) { warned++ })

	require.NoError(t, m.Bounce(context.Background(), 3))

	assert.Equal(t, 3, e.Iteration())
	assert.Equal(t, 24, out.steps)
	require.Len(t, frames, 3)
	assert.Equal(t, 0, frames[0].Iteration)
	assert.Empty(t, frames[0].Records)
	assert.Len(t, frames[1].Records, 4)
	assert.Equal(t, []Note{0, _p, 1, _p, 0, _p, 3, _p}, frames[0].Parts[0].Notes)

	// b's 100 renders as 220 and is dropped every time it sounds
	assert.Positive(t, warned)
	assert.Equal(t, float64(warned), testutil.ToFloat64(m.metrics.DroppedNotes))
	assert.NotEmpty(t, m.Frame().Warnings)
	assert.LessOrEqual(t, len(m.Frame().Warnings), maxWarnings)
}

func TestManager_OutputErrorStopsRun(t *testing.T) {
	a := lowPart(t, "a", 0)
	e := mustEngine(t, program([]*Part{a}))
	m := NewManager(e, &countOutput{fail: errors.New("port gone")})
	m.Play()

	err := m.Run(context.Background())
	assert.ErrorContains(t, err, "port gone")
	assert.Equal(t, Stopped, m.State())
}

func TestManager_Timing(t *testing.T) {
	a := lowPart(t, "a", 0)
	prog := program([]*Part{a})
	require.NoError(t, prog.Config.Set(Tempo, 90))
	e := mustEngine(t, prog)
	out := newGatedOutput()
	m := NewManager(e, out)

	assert.Equal(t, [2]int{90, 16}, [2]int{out.tempo, out.subdiv})

	require.Error(t, m.SetTiming(0, 16))
	require.NoError(t, m.SetTiming(140, 8))
	tempo, subdiv := m.Timing()
	assert.Equal(t, 140, tempo)
	assert.Equal(t, 8, subdiv)
	assert.Equal(t, 8, out.subdiv)
	assert.Equal(t, 140, m.Frame().Tempo)
}

func TestManager_Reload(t *testing.T) {
	a := lowPart(t, "a", 0, 1)
	e := mustEngine(t, program([]*Part{a}))
	out := newGatedOutput()
	m := NewManager(e, out)

	ghost := mustPart(t, "ghost", 0)
	bad := program([]*Part{mustPart(t, "a", 0, 1)}, &Rule{Modifiers: []Modifier{Touch(Absolute(ghost, 0))}})
	require.Error(t, m.Reload(bad))
	assert.Equal(t, 120, out.tempo)

	good := program([]*Part{mustPart(t, "a", 0, 1), mustPart(t, "b", 5)})
	require.NoError(t, good.Config.Set(Tempo, 60))
	require.NoError(t, m.Reload(good))

	assert.Equal(t, 60, out.tempo)
	f := m.Frame()
	require.Len(t, f.Parts, 2)
	assert.Equal(t, "b", f.Parts[1].Name)
	assert.Equal(t, 60, f.Tempo)
}

func TestPlayState_String(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "playing", Playing.String())
	assert.Equal(t, "paused", Paused.String())
}
