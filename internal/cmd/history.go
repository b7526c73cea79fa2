// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/fwsign/internal/audit"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent signing runs from the local audit trail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := audit.OpenDefault()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(historyLimitFlag)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no signing runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tSTATUS\tELF\tSECTION\tSIGNER\tDETAIL")
		for _, r := range runs {
			detail := r.Digest
			status := color.GreenString(r.Status)
			if r.Status == audit.StatusFailed {
				status = color.RedString(r.Status)
				detail = r.ErrorMsg
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), status, r.ElfPath, r.Section, r.SignerKind, detail)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
