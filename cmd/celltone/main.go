// Command celltone plays celltone programs: parts of notes rewritten by
// rules, one iteration at a time, sent to a MIDI port or a MIDI file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
