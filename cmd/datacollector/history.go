package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/history"
)

func NewHistoryCommand() *cobra.Command {
	limit := 20
	asJSON := false

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show recent delivery attempts",
		GroupID: gBasic,
		Long: `Show recent delivery attempts from the daemon's journal, newest first.

The journal is only kept when historyPath is set in the config.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := apiClient.GetHistory(limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			printHistory(cmd.OutOrStdout(), entries)

			stats, err := apiClient.GetHistoryStats()
			if err != nil {
				return err
			}
			printHistoryStats(cmd.OutOrStdout(), len(entries), stats)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", limit, "number of entries to show")
	f.BoolVar(&asJSON, "json", false, "print entries as JSON")

	return cmd
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no deliveries recorded yet")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SAMPLED\tLEVEL\tSTATE\tRESULT\tTOOK")
	for _, e := range entries {
		result := color.GreenString("ok")
		if !e.Success {
			result = color.RedString("failed")
			if e.StatusCode != 0 {
				result += fmt.Sprintf(" (%d)", e.StatusCode)
			} else if e.ErrorKind != "" {
				result += " (" + e.ErrorKind + ")"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\n",
			e.SampleTime.Local().Format("2006-01-02 15:04:05"),
			formatLevel(e.BatteryLevel),
			e.BatteryState,
			result,
			e.DurationMs,
		)
	}
	tw.Flush()
}

func printHistoryStats(w io.Writer, shown int, stats *history.Stats) {
	if stats.Total == 0 {
		return
	}
	failed := stats.Total - stats.Succeeded
	fmt.Fprintf(w, "\nshowing %d of %d recorded attempts: %s succeeded, %s failed\n",
		shown, stats.Total,
		color.GreenString("%d", stats.Succeeded),
		color.RedString("%d", failed),
	)
}
