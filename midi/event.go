package midi

import "fmt"

// Note is one rendered note handed over by the engine. Values are not
// range-policed by the engine; Check does that at the output boundary.
type Note struct {
	Pitch    int
	Channel  int
	Velocity int
}

// Check reports whether the note can be sent to a MIDI device.
func (n Note) Check() error {
	if n.Pitch < 0 || n.Pitch > 127 {
		return fmt.Errorf("bad note number %d", n.Pitch)
	}
	if n.Velocity < 0 || n.Velocity > 127 {
		return fmt.Errorf("bad velocity %d", n.Velocity)
	}
	if n.Channel < 0 || n.Channel > 15 {
		return fmt.Errorf("bad channel number %d", n.Channel)
	}
	return nil
}

// Schedule is one iteration worth of notes, one entry per time offset.
// Notes within an entry are unordered.
type Schedule [][]Note

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for i, step := range s {
		out[i] = append([]Note(nil), step...)
	}
	return out
}
