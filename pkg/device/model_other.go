//go:build !darwin && !linux

package device

import "runtime"

func hardwareModel() string { return runtime.GOOS }

func lowPowerMode() bool { return false }
