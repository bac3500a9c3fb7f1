package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: map[string]string{offline: ""},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

// getVersion returns the client and daemon versions.
func getVersion() (string, string, error) {
	daemonVersion, err := apiClient.GetVersion()
	if err != nil {
		return version.Version, "", err
	}
	return version.Version, daemonVersion, nil
}

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Short:   "Start monitoring",
		GroupID: gBasic,
		Long: `Start periodic sampling.

One sample is collected immediately, then one per configured interval. Counters are kept across stop and start.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Start()
			if err != nil {
				return err
			}
			logrus.Info(ret)
			return nil
		},
	}
}

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Short:   "Stop monitoring",
		GroupID: gBasic,
		Long: `Stop periodic sampling.

Deliveries already in flight still finish and are counted.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Stop()
			if err != nil {
				return err
			}
			logrus.Info(ret)
			return nil
		},
	}
}

func NewCollectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "collect",
		Short:   "Collect and send one sample now",
		GroupID: gBasic,
		Long:    `Collect one sample outside the schedule. Monitoring must be running.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Collect()
			if err != nil {
				return err
			}
			logrus.Info(ret)
			return nil
		},
	}
}
