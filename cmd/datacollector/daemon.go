package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/daemon"
	"github.com/devicedata/datacollector/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the daemon.
	alwaysAllowNonRootAccess = false
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "daemon",
		Hidden:      true,
		Short:       "Run datacollector daemon in the foreground",
		GroupID:     gAdvanced,
		Annotations: map[string]string{offline: ""},
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("datacollector daemon starting")
			return daemon.Run(configPath, unixSocketPath, alwaysAllowNonRootAccess, envFile)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.StringVar(&unixSocketPath, "socket", unixSocketPath, "unix socket to listen on")
	f.StringVar(&envFile, "env-file", envFile, "dotenv file with DATACOLLECTOR_* overrides, ignored if missing")

	return cmd
}
