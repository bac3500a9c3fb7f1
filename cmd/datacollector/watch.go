package main

import (
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/tui"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Live dashboard of collector state",
		GroupID: gBasic,
		Long: `Show a live terminal dashboard fed by daemon events.

Keys: s start/stop, c collect now, r refresh, q quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The dashboard reports connection errors itself.
			if _, err := apiClient.GetVersion(); err != nil {
				return err
			}
			return tui.Run(cmd.Context(), apiClient)
		},
	}
}
