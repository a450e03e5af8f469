package midi

import (
	"context"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Sender delivers one message to a port, as returned by gomidi.SendTo.
type Sender func(msg gomidi.Message) error

// StepDuration is the length of one step: 60/tempo seconds per beat, four
// beats to a whole note, subdiv steps to a whole note.
func StepDuration(tempo, subdiv int) time.Duration {
	if tempo <= 0 || subdiv <= 0 {
		return 0
	}
	return time.Duration(float64(4*time.Minute) / float64(tempo*subdiv))
}

// Player performs in real time over a MIDI port.
type Player struct {
	send Sender

	mu   sync.Mutex
	step time.Duration
}

// NewPlayer creates a realtime output.
func NewPlayer(send Sender, tempo, subdiv int) *Player {
	return &Player{send: send, step: StepDuration(tempo, subdiv)}
}

// SetTiming changes the step length from the next step on.
func (p *Player) SetTiming(tempo, subdiv int) {
	p.mu.Lock()
	p.step = StepDuration(tempo, subdiv)
	p.mu.Unlock()
}

// Step returns the current step length.
func (p *Player) Step() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step
}

func (p *Player) NoteOn(n Note) error {
	return p.send(gomidi.NoteOn(uint8(n.Channel), uint8(n.Pitch), uint8(n.Velocity)))
}

func (p *Player) NoteOff(n Note) error {
	return p.send(gomidi.NoteOff(uint8(n.Channel), uint8(n.Pitch)))
}

// Advance sleeps for one step, or until ctx is done.
func (p *Player) Advance(ctx context.Context) error {
	timer := time.NewTimer(p.Step())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Silence sends note-off for every key on every channel, for use after an
// interrupted performance or a crash.
func (p *Player) Silence() error {
	for ch := uint8(0); ch < 16; ch++ {
		// all notes off
		if err := p.send(gomidi.ControlChange(ch, 123, 0)); err != nil {
			return err
		}
	}
	return nil
}
