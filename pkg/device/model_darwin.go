package device

import (
	"bytes"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

func hardwareModel() string {
	model, err := unix.Sysctl("hw.model")
	if err != nil || model == "" {
		return "Mac"
	}
	return model
}

// lowPowerMode parses `pmset -g`, which prints "lowpowermode 1" when
// Low Power Mode is on.
func lowPowerMode() bool {
	out, err := exec.Command("/usr/bin/pmset", "-g").Output()
	if err != nil {
		return false
	}
	return parsePmset(out)
}

func parsePmset(out []byte) bool {
	for _, line := range bytes.Split(out, []byte("\n")) {
		fields := strings.Fields(string(line))
		if len(fields) == 2 && fields[0] == "lowpowermode" {
			return fields[1] == "1"
		}
	}
	return false
}
