package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/config"
	daemonutils "github.com/devicedata/datacollector/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:         "install",
		Short:       "Install the datacollector daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{offline: ""},
		Long: `Install the datacollector daemon as a system service (launchd on macOS, systemd on Linux).

This makes the daemon run in the background and start on boot. You must run this command as root.

By default, only root is allowed to access the daemon. Use --allow-non-root-access to let other users run status, start and stop without sudo.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the datacollector daemon.")
			} else {
				logrus.Info("only root user is allowed to access the datacollector daemon.")
			}

			err = daemonutils.Install(daemonutils.InstallOptions{
				ConfigPath:   configPath,
				SocketPath:   unixSocketPath,
				AllowNonRoot: allowNonRootAccess,
			})
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("The service will use the current binary (%s) at startup, so do not move it. If it is moved or deleted, run `datacollector install' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access the datacollector daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "uninstall",
		Short:       "Uninstall the datacollector daemon (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{offline: ""},
		Long: `Stop and remove the datacollector system service.

The config file, device id and delivery history are left in place. You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("uninstallation succeeded")
			cmd.Printf("To remove the binary itself, delete it manually.\n")

			return nil
		},
	}
}
