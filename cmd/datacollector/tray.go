package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/gui"
	"github.com/devicedata/datacollector/pkg/version"
)

func NewTrayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tray",
		Short:   "Show collector status in the menu bar",
		GroupID: gAdvanced,
		Long: `Show a menu bar (system tray) icon with the collector status.

The daemon must be running. Monitoring can be started, stopped and triggered from the menu.`,
		Run: func(_ *cobra.Command, _ []string) {
			logrus.WithField("version", version.Version).WithField("gitCommit", version.GitCommit).Info("datacollector tray")
			gui.Run(apiClient)
		},
	}
}
