package config

import (
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/devicedata/datacollector/pkg/collector"
)

// Apply sets every non-nil field of patch on c and returns the keys it
// changed. All fields are checked before any is set, so a rejected patch
// leaves c untouched. The caller decides whether to Save.
func Apply(c Config, patch *RawFileConfig) ([]string, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}
	if patch == nil {
		return nil, nil
	}

	var requestTimeout, watchInterval time.Duration
	if patch.Endpoint != nil {
		if err := ValidateEndpoint(*patch.Endpoint); err != nil {
			return nil, err
		}
	}
	if patch.Interval != nil {
		if _, err := collector.ParseSchedule(*patch.Interval); err != nil {
			return nil, err
		}
	}
	if patch.DeviceIDPath != nil && *patch.DeviceIDPath == "" {
		return nil, pkgerrors.New("deviceIdPath must not be empty")
	}
	if patch.MQTTTopic != nil && *patch.MQTTTopic == "" {
		return nil, pkgerrors.New("mqttTopic must not be empty")
	}
	if patch.RequestTimeout != nil {
		d, err := parsePatchDuration("requestTimeout", *patch.RequestTimeout, ValidateRequestTimeout)
		if err != nil {
			return nil, err
		}
		requestTimeout = d
	}
	if patch.WatchInterval != nil {
		d, err := parsePatchDuration("watchInterval", *patch.WatchInterval, ValidateWatchInterval)
		if err != nil {
			return nil, err
		}
		watchInterval = d
	}

	var changed []string
	// The setters repeat the checks above and cannot fail here.
	if patch.Endpoint != nil {
		_ = c.SetEndpoint(*patch.Endpoint)
		changed = append(changed, "endpoint")
	}
	if patch.Interval != nil {
		_ = c.SetInterval(*patch.Interval)
		changed = append(changed, "interval")
	}
	if patch.RequestTimeout != nil {
		_ = c.SetRequestTimeout(requestTimeout)
		changed = append(changed, "requestTimeout")
	}
	if patch.WatchInterval != nil {
		_ = c.SetWatchInterval(watchInterval)
		changed = append(changed, "watchInterval")
	}
	if patch.AutoStart != nil {
		c.SetAutoStart(*patch.AutoStart)
		changed = append(changed, "autoStart")
	}
	if patch.DeviceIDPath != nil {
		c.SetDeviceIDPath(*patch.DeviceIDPath)
		changed = append(changed, "deviceIdPath")
	}
	if patch.HistoryPath != nil {
		c.SetHistoryPath(*patch.HistoryPath)
		changed = append(changed, "historyPath")
	}
	if patch.MQTTTopic != nil {
		c.SetMQTTTopic(*patch.MQTTTopic)
		changed = append(changed, "mqttTopic")
	}
	if patch.AllowNonRootAccess != nil {
		c.SetAllowNonRootAccess(*patch.AllowNonRootAccess)
		changed = append(changed, "allowNonRootAccess")
	}
	return changed, nil
}

func parsePatchDuration(name, v string, check func(time.Duration) error) (time.Duration, error) {
	if err := validateDurationString(name, v, check); err != nil {
		return 0, err
	}
	d, _ := time.ParseDuration(v)
	return d, nil
}
