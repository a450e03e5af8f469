package midi

import (
	"context"

	"go-celltone/debug"
)

// Output is where a schedule is performed, one step at a time.
type Output interface {
	NoteOn(n Note) error
	NoteOff(n Note) error
	// Advance moves time forward by one step. It returns ctx.Err() if
	// cancelled before the step is over.
	Advance(ctx context.Context) error
}

// Timed is implemented by outputs whose step length depends on tempo and
// subdivision.
type Timed interface {
	SetTiming(tempo, subdiv int)
}

// WarnFunc is told about notes dropped at the output boundary.
type WarnFunc func(n Note, err error)

// Perform plays sched on out: for each step, note-ons, one step of time,
// then note-offs. Notes failing Check are dropped and reported to warn.
//
// If ctx is cancelled, the step in progress still gets its note-offs, and
// the steps that never started are returned along with ctx.Err(). A nil
// remainder means the schedule played to the end.
func Perform(ctx context.Context, out Output, sched Schedule, warn WarnFunc) (Schedule, error) {
	for i, step := range sched {
		if err := ctx.Err(); err != nil {
			return sched[i:].Clone(), err
		}

		playing := make([]Note, 0, len(step))
		for _, n := range step {
			if err := n.Check(); err != nil {
				if warn != nil {
					warn(n, err)
				}
				continue
			}
			if err := out.NoteOn(n); err != nil {
				release(out, playing)
				return sched[i:].Clone(), err
			}
			playing = append(playing, n)
		}

		advErr := out.Advance(ctx)

		for _, n := range playing {
			if err := out.NoteOff(n); err != nil {
				return sched[i+1:].Clone(), err
			}
		}
		if advErr != nil {
			debug.Log("perform", "stopped after step %d of %d: %v", i+1, len(sched), advErr)
			return sched[i+1:].Clone(), advErr
		}
	}
	return nil, nil
}

// release sends note-offs for notes already started in a failed step.
// Their errors are dropped; the note-on error is the one reported.
func release(out Output, notes []Note) {
	for _, n := range notes {
		if err := out.NoteOff(n); err != nil {
			debug.Log("perform", "note-off %+v after failed step: %v", n, err)
		}
	}
}
