// Package sample defines the immutable snapshot of device power state that
// is built on every collector tick and handed to the envelope encoder.
package sample

import (
	"time"

	"github.com/devicedata/datacollector/pkg/powerinfo"
)

// Sample is one snapshot of device power state. The zero value is not
// useful; construct with New. Fields are unexported so a Sample cannot be
// changed after construction.
type Sample struct {
	deviceID       string
	timestamp      time.Time
	batteryLevel   float64
	batteryState   powerinfo.BatteryState
	isLowPowerMode bool
	deviceModel    string
}

// New builds a Sample from a device reading taken at now.
func New(r powerinfo.Reading, now time.Time) Sample {
	state := r.State
	if state == "" {
		state = powerinfo.Unknown
	}
	return Sample{
		deviceID: r.DeviceID,
		// Round to strip monotonic clock reading.
		timestamp:      now.Round(0).UTC(),
		batteryLevel:   r.Level,
		batteryState:   state,
		isLowPowerMode: r.LowPower,
		deviceModel:    r.DeviceModel,
	}
}

func (s Sample) DeviceID() string                     { return s.deviceID }
func (s Sample) Timestamp() time.Time                 { return s.timestamp }
func (s Sample) BatteryLevel() float64                { return s.batteryLevel }
func (s Sample) BatteryState() powerinfo.BatteryState { return s.batteryState }
func (s Sample) IsLowPowerMode() bool                 { return s.isLowPowerMode }
func (s Sample) DeviceModel() string                  { return s.deviceModel }

// Equal reports whether two samples carry the same values.
func (s Sample) Equal(o Sample) bool {
	return s.deviceID == o.deviceID &&
		s.timestamp.Equal(o.timestamp) &&
		s.batteryLevel == o.batteryLevel &&
		s.batteryState == o.batteryState &&
		s.isLowPowerMode == o.isLowPowerMode &&
		s.deviceModel == o.deviceModel
}
