package daemon

import (
	"bytes"
	_ "embed"
	"fmt"
	"runtime"
	"text/template"
)

const Label = "com.devicedata.datacollector"

var (
	//go:embed datacollector.plist.tmpl
	launchdTemplate string
	//go:embed datacollector.service.tmpl
	systemdTemplate string
)

// Service manager file locations. Variables so tests can redirect them.
var (
	plistPath = "/Library/LaunchDaemons/" + Label + ".plist"
	unitPath  = "/etc/systemd/system/datacollector.service"
	logPath   = "/var/log/datacollector.log"
)

// Unit describes how the service manager starts the daemon.
type Unit struct {
	Label        string
	Executable   string
	ConfigPath   string
	SocketPath   string
	LogPath      string
	AllowNonRoot bool
}

// Render returns the service definition for goos.
func Render(goos string, u Unit) ([]byte, error) {
	var text string
	switch goos {
	case "darwin":
		text = launchdTemplate
	case "linux":
		text = systemdTemplate
	default:
		return nil, fmt.Errorf("installing the daemon is not supported on %s", goos)
	}

	tmpl, err := template.New(goos).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s service template: %w", goos, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, u); err != nil {
		return nil, fmt.Errorf("failed to render %s service template: %w", goos, err)
	}
	return buf.Bytes(), nil
}

func servicePath(goos string) string {
	if goos == "darwin" {
		return plistPath
	}
	return unitPath
}

var hostOS = runtime.GOOS
