package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Uninstall stops the service and removes its definition.
func Uninstall() error {
	return uninstall(hostOS)
}

func uninstall(goos string) error {
	path := servicePath(goos)
	logrus.Infof("stopping datacollector")

	var err error
	switch goos {
	case "darwin":
		err = runCommand("/bin/launchctl", "unload", path)
	case "linux":
		err = runCommand("systemctl", "disable", "--now", filepath.Base(path))
	default:
		return fmt.Errorf("uninstalling the daemon is not supported on %s", goos)
	}
	if err != nil {
		return fmt.Errorf("failed to unload %s: %w. Are you root?", path, err)
	}

	logrus.Infof("removing service definition")

	// Nothing to remove if it is already gone.
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	err = os.Remove(path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", path, err)
	}

	return nil
}
