package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go-celltone/debug"
	"go-celltone/midi"
)

// PlayState is the transport state of the driving loop.
type PlayState int

const (
	Stopped PlayState = iota
	Playing
	Paused
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// maxWarnings is how many recent warnings a Frame carries.
const maxWarnings = 5

// Frame is what the loop last published: the schedule being played, the
// firings of the iteration that produced it, and the parts as they are now.
type Frame struct {
	State     PlayState
	Iteration int
	Length    int
	Tempo     int
	Subdiv    int
	Schedule  midi.Schedule
	Records   []Record
	Parts     []PartView
	Rules     []*Rule
	Warnings  []string
}

// Manager is the driving loop: render the current window, hand it to the
// output, iterate while it plays, wait for the output, repeat. All engine
// access goes through mu, so reload, reset and iterate never interleave.
type Manager struct {
	mu     sync.Mutex
	engine *Engine
	out    midi.Output
	log    *Log

	state        PlayState
	leftover     midi.Schedule // unplayed rest of a paused schedule
	cancel       context.CancelFunc
	resetPending bool
	wake         chan struct{}

	tempo, subdiv int
	frame         Frame
	warnings      []string

	metrics *Metrics
	onWarn  midi.WarnFunc
	onFrame func(Frame)

	// UpdateChan is signalled whenever a new frame is published.
	UpdateChan chan struct{}
}

// NewManager creates a stopped driving loop over engine and out.
func NewManager(engine *Engine, out midi.Output) *Manager {
	cfg := engine.Config()
	m := &Manager{
		engine:     engine,
		out:        out,
		log:        NewLog(),
		wake:       make(chan struct{}, 1),
		tempo:      cfg.Tempo(),
		subdiv:     cfg.Subdivision(),
		UpdateChan: make(chan struct{}, 1),
	}
	m.applyTiming()
	m.publish(nil)
	return m
}

// SetMetrics attaches metrics to the manager and its engine.
func (m *Manager) SetMetrics(metrics *Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
	m.engine.SetMetrics(metrics)
}

// SetOnWarn sets the callback for notes dropped at the output.
func (m *Manager) SetOnWarn(fn midi.WarnFunc) {
	m.mu.Lock()
	m.onWarn = fn
	m.mu.Unlock()
}

// SetOnFrame sets a callback run by the loop for every published frame,
// outside the lock and before the frame's schedule starts playing.
func (m *Manager) SetOnFrame(fn func(Frame)) {
	m.mu.Lock()
	m.onFrame = fn
	m.mu.Unlock()
}

// SetOutput swaps the output. It takes effect with the next schedule.
func (m *Manager) SetOutput(out midi.Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = out
	m.applyTiming()
}

// SetTiming changes tempo and subdivision. Values outside the option
// ranges are rejected.
func (m *Manager) SetTiming(tempo, subdiv int) error {
	var c Config
	if err := c.Set(Tempo, tempo); err != nil {
		return err
	}
	if err := c.Set(Subdivision, subdiv); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempo, m.subdiv = tempo, subdiv
	m.applyTiming()
	m.publishLocked(m.frame.Schedule)
	return nil
}

// Timing returns tempo and subdivision.
func (m *Manager) Timing() (tempo, subdiv int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo, m.subdiv
}

func (m *Manager) applyTiming() {
	if t, ok := m.out.(midi.Timed); ok {
		t.SetTiming(m.tempo, m.subdiv)
	}
}

// State returns the transport state.
func (m *Manager) State() PlayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Frame returns the last published frame.
func (m *Manager) Frame() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Play starts or resumes playback. A paused schedule resumes where it was
// interrupted.
func (m *Manager) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		return
	}
	m.state = Playing
	debug.Log("manager", "play (leftover %d steps)", len(m.leftover))
	m.signal()
}

// Pause interrupts playback. The unplayed rest of the current schedule is
// kept for Play.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Playing {
		return
	}
	m.state = Paused
	if m.cancel != nil {
		m.cancel()
	}
	m.publishLocked(m.frame.Schedule)
	debug.Log("manager", "pause")
}

// Stop interrupts playback and resets every part to its loaded notes.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Stopped {
		return
	}
	m.state = Stopped
	m.leftover = nil
	if m.cancel != nil {
		// the loop resets once the output has let go
		m.cancel()
		m.resetPending = true
	} else {
		m.reset()
	}
	debug.Log("manager", "stop")
}

func (m *Manager) reset() {
	m.engine.ResetToOriginal()
	m.log.Clear()
	m.publishLocked(nil)
}

// Source returns the current state as program text, with the current
// tempo and subdivision.
func (m *Manager) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.source(m.tempo, m.subdiv)
}

// Reload swaps in a new program. On error nothing changes.
func (m *Manager) Reload(prog *Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.Reload(prog); err != nil {
		return err
	}
	m.tempo, m.subdiv = prog.Config.Tempo(), prog.Config.Subdivision()
	m.applyTiming()
	m.publishLocked(m.frame.Schedule)
	return nil
}

// signal wakes an idle loop.
func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) notifyUpdate() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

func (m *Manager) publish(sched midi.Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked(sched)
}

func (m *Manager) publishLocked(sched midi.Schedule) {
	m.frame = Frame{
		State:     m.state,
		Iteration: m.engine.Iteration(),
		Length:    m.engine.IterationLength(),
		Tempo:     m.tempo,
		Subdiv:    m.subdiv,
		Schedule:  sched,
		Records:   m.log.Records(),
		Parts:     m.engine.Views(),
		Rules:     m.engine.Rules(),
		Warnings:  append([]string(nil), m.warnings...),
	}
	m.notifyUpdate()
}

// warn is handed to midi.Perform and runs on the playback goroutine.
func (m *Manager) warn(n midi.Note, err error) {
	m.mu.Lock()
	m.warnings = append(m.warnings, err.Error())
	if len(m.warnings) > maxWarnings {
		m.warnings = m.warnings[len(m.warnings)-maxWarnings:]
	}
	if m.metrics != nil {
		m.metrics.DroppedNotes.Inc()
	}
	fn := m.onWarn
	m.mu.Unlock()

	debug.Log("manager", "dropped note %+v: %v", n, err)
	if fn != nil {
		fn(n, err)
	}
}

type performResult struct {
	rest midi.Schedule
	err  error
}

// Run drives the loop until ctx is done. It returns nil on cancellation and
// an error if the output fails.
func (m *Manager) Run(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.state != Playing {
			m.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil
			case <-m.wake:
			}
			continue
		}

		// a resumed schedule was already iterated past when it was cut
		sched, resumed := m.leftover, m.leftover != nil
		m.leftover = nil
		if !resumed {
			sched = m.engine.RenderSchedule()
		}
		playCtx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		out := m.out
		m.publishLocked(sched)
		frame, onFrame := m.frame, m.onFrame
		m.mu.Unlock()

		if onFrame != nil {
			onFrame(frame)
		}

		done := make(chan performResult, 1)
		go func() {
			rest, err := midi.Perform(playCtx, out, sched, m.warn)
			done <- performResult{rest, err}
		}()

		if !resumed {
			m.mu.Lock()
			if m.state != Stopped {
				m.log.Clear()
				m.engine.Iterate(m.log)
			}
			m.mu.Unlock()
		}

		res := <-done
		cancel()

		m.mu.Lock()
		m.cancel = nil
		switch {
		case m.resetPending:
			m.resetPending = false
			m.reset()
		case len(res.rest) > 0 && ctx.Err() == nil:
			m.leftover = res.rest
			if m.state != Playing {
				m.publishLocked(m.frame.Schedule)
			}
		}
		m.mu.Unlock()

		if ctx.Err() != nil {
			return nil
		}
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			m.mu.Lock()
			m.state = Stopped
			m.publishLocked(nil)
			m.mu.Unlock()
			return fmt.Errorf("output: %w", res.err)
		}
	}
}

// Bounce renders n iterations to out without waiting on the transport,
// for file output.
func (m *Manager) Bounce(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		sched := m.engine.RenderSchedule()
		out := m.out
		m.publishLocked(sched)
		frame, onFrame := m.frame, m.onFrame
		m.mu.Unlock()

		if onFrame != nil {
			onFrame(frame)
		}
		if _, err := midi.Perform(ctx, out, sched, m.warn); err != nil {
			return err
		}

		m.mu.Lock()
		m.log.Clear()
		m.engine.Iterate(m.log)
		m.mu.Unlock()
	}
	return nil
}
