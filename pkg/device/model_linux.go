package device

import (
	"os"
	"strings"
)

var (
	dmiProductPath      = "/sys/devices/virtual/dmi/id/product_name"
	platformProfilePath = "/sys/firmware/acpi/platform_profile"
)

func hardwareModel() string {
	b, err := os.ReadFile(dmiProductPath)
	if err != nil {
		return "linux"
	}
	if model := strings.TrimSpace(string(b)); model != "" {
		return model
	}
	return "linux"
}

func lowPowerMode() bool {
	b, err := os.ReadFile(platformProfilePath)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(b)) == "low-power"
}
