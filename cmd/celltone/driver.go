//go:build !nortmidi

package main

// Realtime output needs a registered driver. Build with -tags nortmidi to
// leave it out; only file output works then.
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
