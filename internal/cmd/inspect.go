// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/fwsign/internal/elf"
)

// inspectCmd dumps the section table of a container, which is the
// usual first step when a sign run reports a missing or wrongly sized
// placeholder section.
var inspectCmd = &cobra.Command{
	Use:   "inspect <elfPath>",
	Short: "List the sections of a firmware ELF image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		f, err := elf.Parse(raw)
		if err != nil {
			return err
		}

		color.New(color.Bold).Printf("%s: %d sections, %d bytes\n", args[0], len(f.Sections), f.Size())

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDX\tNAME\tOFFSET\tSIZE")
		for _, s := range f.Sections {
			fmt.Fprintf(w, "%d\t%s\t0x%08x\t0x%08x\n", s.Index, s.Name, s.Offset, s.Size)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
