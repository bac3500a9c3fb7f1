package collector

import (
	"time"

	"github.com/devicedata/datacollector/pkg/powerinfo"
)

// State is the published view of the collector. Values returned by
// Collector.State are copies.
type State struct {
	IsMonitoring        bool                   `json:"isMonitoring"`
	LastUpdateTime      *time.Time             `json:"lastUpdateTime,omitempty"`
	SentDataCount       uint64                 `json:"sentDataCount"`
	FailedCount         uint64                 `json:"failedCount"`
	LastError           string                 `json:"lastError,omitempty"`
	CurrentBatteryLevel float64                `json:"currentBatteryLevel"`
	CurrentBatteryState powerinfo.BatteryState `json:"currentBatteryState"`
	IsLowPowerMode      bool                   `json:"isLowPowerMode"`
	DeviceID            string                 `json:"deviceId"`
	DeviceModel         string                 `json:"deviceModel"`
	Interval            string                 `json:"interval"`
	RecentDeliveries    []string               `json:"recentDeliveries,omitempty"`
}

func (s State) clone() State {
	out := s
	if s.LastUpdateTime != nil {
		t := *s.LastUpdateTime
		out.LastUpdateTime = &t
	}
	out.RecentDeliveries = nil
	return out
}

// Carryover is the part of the published state that outlives a single
// Collector: counters only grow for the life of the process.
type Carryover struct {
	LastUpdateTime *time.Time
	SentDataCount  uint64
	FailedCount    uint64
	LastError      string
	Deliveries     []time.Time
}

// DeliveryRecord describes one finished delivery attempt.
type DeliveryRecord struct {
	SampleTime   time.Time
	DeviceID     string
	BatteryLevel float64
	BatteryState powerinfo.BatteryState
	LowPower     bool
	Success      bool
	ErrorKind    string
	StatusCode   int
	Error        string
	Duration     time.Duration
}
