package main

import (
	"time"

	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

type statusJSON struct {
	Monitoring    statusMonitoringJSON `json:"monitoring"`
	Battery       statusBatteryJSON    `json:"battery"`
	Configuration statusConfigJSON     `json:"configuration"`
}

type statusMonitoringJSON struct {
	Running          bool       `json:"running"`
	Interval         string     `json:"interval"`
	SentDataCount    uint64     `json:"sentDataCount"`
	FailedCount      uint64     `json:"failedCount"`
	LastUpdateTime   *time.Time `json:"lastUpdateTime"`
	LastError        string     `json:"lastError,omitempty"`
	RecentDeliveries []string   `json:"recentDeliveries,omitempty"`
}

type statusBatteryJSON struct {
	// LevelPercent is nil when the level is unknown.
	LevelPercent   *int                   `json:"levelPercent"`
	State          powerinfo.BatteryState `json:"state"`
	IsLowPowerMode bool                   `json:"isLowPowerMode"`
	DeviceID       string                 `json:"deviceId"`
	DeviceModel    string                 `json:"deviceModel"`
}

type statusConfigJSON struct {
	Endpoint           string `json:"endpoint"`
	Interval           string `json:"interval"`
	RequestTimeout     string `json:"requestTimeout"`
	AutoStart          bool   `json:"autoStart"`
	HistoryPath        string `json:"historyPath"`
	AllowNonRootAccess bool   `json:"allowNonRootAccess"`
}

func newStatusJSON(data *statusData) statusJSON {
	st := data.state
	conf := config.NewFileFromConfig(data.config, "")

	var level *int
	r := powerinfo.Reading{Level: st.CurrentBatteryLevel}
	if pct := r.Percent(); pct >= 0 {
		level = &pct
	}

	return statusJSON{
		Monitoring: statusMonitoringJSON{
			Running:          st.IsMonitoring,
			Interval:         st.Interval,
			SentDataCount:    st.SentDataCount,
			FailedCount:      st.FailedCount,
			LastUpdateTime:   st.LastUpdateTime,
			LastError:        st.LastError,
			RecentDeliveries: st.RecentDeliveries,
		},
		Battery: statusBatteryJSON{
			LevelPercent:   level,
			State:          st.CurrentBatteryState,
			IsLowPowerMode: st.IsLowPowerMode,
			DeviceID:       st.DeviceID,
			DeviceModel:    st.DeviceModel,
		},
		Configuration: statusConfigJSON{
			Endpoint:           conf.Endpoint(),
			Interval:           conf.Interval(),
			RequestTimeout:     conf.RequestTimeout().String(),
			AutoStart:          conf.AutoStart(),
			HistoryPath:        conf.HistoryPath(),
			AllowNonRootAccess: conf.AllowNonRootAccess(),
		},
	}
}
