package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-celltone/midi"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := midi.Ports()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Outputs:")
			printPorts(cmd, ports.Outs)
			fmt.Fprintln(out, "Inputs:")
			printPorts(cmd, ports.Ins)
			return nil
		},
	}
}

func printPorts(cmd *cobra.Command, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "  (none)")
		return
	}
	for i, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d: %s\n", i, name)
	}
}
