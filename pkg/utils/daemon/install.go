package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// test seams
var (
	runCommand = func(name string, args ...string) error {
		out, err := exec.Command(name, args...).CombinedOutput()
		if err != nil && len(out) > 0 {
			return fmt.Errorf("%w: %s", err, out)
		}
		return err
	}
	chownRoot = func(path string) error { return os.Chown(path, 0, 0) }
)

// InstallOptions are passed through to the daemon command line.
type InstallOptions struct {
	ConfigPath   string
	SocketPath   string
	AllowNonRoot bool
}

// Install registers the current executable as a system service and starts it.
func Install(opts InstallOptions) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	return install(hostOS, Unit{
		Label:        Label,
		Executable:   exePath,
		ConfigPath:   opts.ConfigPath,
		SocketPath:   opts.SocketPath,
		LogPath:      logPath,
		AllowNonRoot: opts.AllowNonRoot,
	})
}

func install(goos string, u Unit) error {
	content, err := Render(goos, u)
	if err != nil {
		return err
	}

	path := servicePath(goos)
	logrus.Infof("writing service definition to %s", path)

	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	if _, err := os.Stat(path); err == nil {
		logrus.Warnf("%s already exists, overwriting", path)
	}

	err = os.WriteFile(path, content, 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	err = chownRoot(path)
	if err != nil {
		return fmt.Errorf("failed to chown %s: %w", path, err)
	}

	logrus.Infof("starting datacollector")

	switch goos {
	case "darwin":
		err = runCommand("/bin/launchctl", "load", path)
	default:
		if err = runCommand("systemctl", "daemon-reload"); err == nil {
			err = runCommand("systemctl", "enable", "--now", filepath.Base(path))
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}
