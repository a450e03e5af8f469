package midi

import (
	"context"
	"fmt"
	"io"
	"os"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerStep is the file resolution of one schedule step.
const TicksPerStep = 12

// Writer records a performance into a standard MIDI file instead of playing
// it. Time only advances when Advance is called, so rendering is as fast as
// the engine.
type Writer struct {
	subdiv int // fixes the file resolution
	tempo  float64

	meta  smf.Track
	notes smf.Track

	tick      uint32 // current position
	metaTick  uint32 // position of the last meta event
	notesTick uint32 // position of the last note event
}

// NewWriter creates a file output. The subdivision fixes the resolution at
// 3*subdiv ticks per quarter, so each step is TicksPerStep ticks.
func NewWriter(tempo, subdiv int) *Writer {
	w := &Writer{subdiv: subdiv}
	w.SetTiming(tempo, subdiv)
	return w
}

// SetTiming writes a tempo change at the current position. Subdivision
// changes are folded into the tempo, since the resolution is fixed.
func (w *Writer) SetTiming(tempo, subdiv int) {
	bpm := float64(tempo) * float64(subdiv) / float64(w.subdiv)
	if bpm == w.tempo {
		return
	}
	w.tempo = bpm
	w.meta.Add(w.tick-w.metaTick, smf.MetaTempo(bpm))
	w.metaTick = w.tick
}

func (w *Writer) add(msg gomidi.Message) {
	w.notes.Add(w.tick-w.notesTick, msg)
	w.notesTick = w.tick
}

func (w *Writer) NoteOn(n Note) error {
	w.add(gomidi.NoteOn(uint8(n.Channel), uint8(n.Pitch), uint8(n.Velocity)))
	return nil
}

func (w *Writer) NoteOff(n Note) error {
	w.add(gomidi.NoteOff(uint8(n.Channel), uint8(n.Pitch)))
	return nil
}

// Advance moves the write position one step.
func (w *Writer) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.tick += TicksPerStep
	return nil
}

// Ticks is the current write position.
func (w *Writer) Ticks() uint32 {
	return w.tick
}

func (w *Writer) file() (*smf.SMF, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(3 * w.subdiv)

	meta := append(smf.Track(nil), w.meta...)
	meta.Close(0)
	notes := append(smf.Track(nil), w.notes...)
	notes.Close(w.tick - w.notesTick)

	if err := s.Add(meta); err != nil {
		return nil, fmt.Errorf("tempo track: %w", err)
	}
	if err := s.Add(notes); err != nil {
		return nil, fmt.Errorf("note track: %w", err)
	}
	return s, nil
}

// WriteTo writes the file written so far. The writer can keep recording
// afterwards.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	s, err := w.file()
	if err != nil {
		return 0, err
	}
	return s.WriteTo(out)
}

// WriteFile writes the file to path.
func (w *Writer) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
