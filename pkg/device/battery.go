package device

import (
	"errors"
	"time"

	"github.com/distatus/battery"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/powerinfo"
)

// test seams
var (
	batteryGetAll = battery.GetAll
	readLowPower  = lowPowerMode
	readModel     = hardwareModel
)

var errNoBattery = errors.New("no batteries found")

// BatteryProvider reads the host battery through distatus/battery.
type BatteryProvider struct {
	deviceID string
	model    string
	watcher  *Watcher
}

var _ Provider = &BatteryProvider{}

// NewBatteryProvider returns a provider whose change notifications are
// derived by polling every watchInterval.
func NewBatteryProvider(deviceID string, watchInterval time.Duration) *BatteryProvider {
	p := &BatteryProvider{
		deviceID: deviceID,
		model:    readModel(),
	}
	p.watcher = NewWatcher(p.Read, watchInterval)
	return p
}

// Read implements Provider. A host without a battery, or one the platform
// cannot read, reports an unknown level and state rather than an error.
func (p *BatteryProvider) Read() (powerinfo.Reading, error) {
	r := powerinfo.Reading{
		Level:       powerinfo.UnknownLevel,
		State:       powerinfo.Unknown,
		LowPower:    readLowPower(),
		DeviceID:    p.deviceID,
		DeviceModel: p.model,
	}

	bat, err := firstBattery()
	if err != nil {
		logrus.Tracef("battery unavailable: %v", err)
		return r, nil
	}

	if bat.Full > 0 {
		level := bat.Current / bat.Full
		if level > 1 {
			level = 1
		}
		if level < 0 {
			level = 0
		}
		r.Level = level
	}
	r.State = mapState(bat.State)

	return r, nil
}

// OnChange implements Provider.
func (p *BatteryProvider) OnChange(cb func(powerinfo.Reading)) func() {
	return p.watcher.Subscribe(cb)
}

func firstBattery() (*battery.Battery, error) {
	batteries, err := batteryGetAll()
	// GetAll reports partial failures alongside usable batteries.
	for _, b := range batteries {
		if b != nil {
			return b, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, errNoBattery
}

func mapState(s battery.State) powerinfo.BatteryState {
	switch s {
	case battery.Charging:
		return powerinfo.Charging
	case battery.Full:
		return powerinfo.Full
	case battery.Discharging, battery.Empty:
		return powerinfo.Unplugged
	default:
		return powerinfo.Unknown
	}
}
