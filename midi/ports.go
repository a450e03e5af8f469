package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ScanTimeout bounds a port scan. CoreMIDI can hang; the fix is
// `sudo killall coreaudiod midiserver`.
const ScanTimeout = 3 * time.Second

var (
	// ErrScanTimeout is returned when the MIDI driver does not answer.
	ErrScanTimeout = errors.New("MIDI port scan timed out")
	// ErrNoPort is returned when no output port matches.
	ErrNoPort = errors.New("no such MIDI output port")
)

// PortList is the result of a port scan.
type PortList struct {
	Ins  []string
	Outs []string
}

func scan(timeout time.Duration) ([]drivers.In, []drivers.Out, error) {
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := gomidi.GetInPorts()
		outs := gomidi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		return r.ins, r.outs, nil
	case <-time.After(timeout):
		return nil, nil, ErrScanTimeout
	}
}

// Ports lists the input and output port names. A driver must be registered
// by importing it, see cmd/celltone.
func Ports() (PortList, error) {
	ins, outs, err := scan(ScanTimeout)
	if err != nil {
		return PortList{}, err
	}
	var l PortList
	for _, p := range ins {
		l.Ins = append(l.Ins, p.String())
	}
	for _, p := range outs {
		l.Outs = append(l.Outs, p.String())
	}
	return l, nil
}

// MatchPort picks the port for name: an exact match, else the first port
// whose name contains it, ignoring case. An empty name picks the first
// port.
func MatchPort(names []string, name string) (int, bool) {
	if len(names) == 0 {
		return -1, false
	}
	if name == "" {
		return 0, true
	}
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	want := strings.ToLower(name)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i, true
		}
	}
	return -1, false
}

// OpenSender opens the output port selected by MatchPort and returns its
// sender and full name.
func OpenSender(name string) (Sender, string, error) {
	_, outs, err := scan(ScanTimeout)
	if err != nil {
		return nil, "", err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	i, ok := MatchPort(names, name)
	if !ok {
		if name == "" {
			return nil, "", fmt.Errorf("%w: no output ports", ErrNoPort)
		}
		return nil, "", fmt.Errorf("%w: '%s'", ErrNoPort, name)
	}
	send, err := gomidi.SendTo(outs[i])
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", names[i], err)
	}
	return send, names[i], nil
}
