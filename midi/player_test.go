package midi

import (
	"context"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepDuration(t *testing.T) {
	assert.Equal(t, 125*time.Millisecond, StepDuration(120, 16))
	assert.Equal(t, 500*time.Millisecond, StepDuration(120, 4))
	assert.Equal(t, time.Second, StepDuration(60, 4))
	assert.Zero(t, StepDuration(0, 4))
}

func TestPlayer_SendsMessages(t *testing.T) {
	var sent []gomidi.Message
	p := NewPlayer(func(msg gomidi.Message) error {
		sent = append(sent, msg)
		return nil
	}, 120, 16)

	require.NoError(t, p.NoteOn(Note{Pitch: 60, Channel: 2, Velocity: 99}))
	require.NoError(t, p.NoteOff(Note{Pitch: 60, Channel: 2, Velocity: 99}))
	require.Len(t, sent, 2)

	var ch, key, vel uint8
	require.True(t, sent[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, [3]uint8{2, 60, 99}, [3]uint8{ch, key, vel})
	require.True(t, sent[1].GetNoteOff(&ch, &key, &vel))
	assert.Equal(t, [2]uint8{2, 60}, [2]uint8{ch, key})

	sent = nil
	require.NoError(t, p.Silence())
	assert.Len(t, sent, 16)
}

func TestPlayer_AdvanceCancel(t *testing.T) {
	p := NewPlayer(func(gomidi.Message) error { return nil }, 1, 1)
	require.Equal(t, 4*time.Minute, p.Step())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	assert.ErrorIs(t, p.Advance(ctx), context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestPlayer_SetTiming(t *testing.T) {
	p := NewPlayer(func(gomidi.Message) error { return nil }, 120, 16)
	p.SetTiming(6000, 100)
	assert.Equal(t, 400*time.Microsecond, p.Step())
	require.NoError(t, p.Advance(context.Background()))
}

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through Port-0", "FluidSynth virtual port", "IAC Driver Bus 1"}

	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"", 0, true},
		{"IAC Driver Bus 1", 2, true},
		{"fluidsynth", 1, true},
		{"port", 0, true},
		{"loopMIDI", -1, false},
	}
	for _, tt := range tests {
		i, ok := MatchPort(names, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, i, tt.name)
	}

	_, ok := MatchPort(nil, "")
	assert.False(t, ok)
}
