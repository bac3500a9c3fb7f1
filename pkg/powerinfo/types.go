package powerinfo

import "encoding/json"

// BatteryState represents the charging state of the battery.
type BatteryState string

const (
	// Unknown indicates the platform could not report a state.
	Unknown BatteryState = "unknown"
	// Unplugged indicates the device runs on battery.
	Unplugged BatteryState = "unplugged"
	// Charging indicates the battery is charging.
	Charging BatteryState = "charging"
	// Full indicates the battery is full while on external power.
	Full BatteryState = "full"
)

// UnknownLevel is reported when the battery level cannot be read.
const UnknownLevel = -1.0

// ParseBatteryState maps a string to a BatteryState. Anything unrecognized
// becomes Unknown.
func ParseBatteryState(s string) BatteryState {
	switch BatteryState(s) {
	case Unplugged, Charging, Full:
		return BatteryState(s)
	default:
		return Unknown
	}
}

// UnmarshalJSON normalizes unknown values instead of failing.
func (s *BatteryState) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseBatteryState(raw)
	return nil
}

// Reading is one set of raw device readings.
// Level is a fraction in [0, 1], or UnknownLevel.
type Reading struct {
	Level       float64      `json:"level"`
	State       BatteryState `json:"state"`
	LowPower    bool         `json:"lowPower"`
	DeviceID    string       `json:"deviceId"`
	DeviceModel string       `json:"deviceModel"`
}

// Percent returns the level as an integer percentage, or -1 when unknown.
func (r Reading) Percent() int {
	if r.Level < 0 {
		return -1
	}
	return int(r.Level*100 + 0.5)
}

// SameBattery reports whether level and state are unchanged between readings.
func (r Reading) SameBattery(o Reading) bool {
	return r.Level == o.Level && r.State == o.State
}
