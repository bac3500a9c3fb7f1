package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devicedata/datacollector/pkg/powerinfo"
)

func TestNew(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2025, 8, 9, 15, 0, 0, 0, loc)

	s := New(powerinfo.Reading{
		Level:       0.42,
		State:       powerinfo.Charging,
		LowPower:    true,
		DeviceID:    "id-1",
		DeviceModel: "iPhone",
	}, now)

	assert.Equal(t, "id-1", s.DeviceID())
	assert.Equal(t, time.UTC, s.Timestamp().Location())
	assert.True(t, s.Timestamp().Equal(now))
	assert.Equal(t, 0.42, s.BatteryLevel())
	assert.Equal(t, powerinfo.Charging, s.BatteryState())
	assert.True(t, s.IsLowPowerMode())
	assert.Equal(t, "iPhone", s.DeviceModel())
}

func TestNewEmptyStateIsUnknown(t *testing.T) {
	s := New(powerinfo.Reading{Level: powerinfo.UnknownLevel}, time.Now())
	assert.Equal(t, powerinfo.Unknown, s.BatteryState())
}
