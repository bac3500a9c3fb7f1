package config

import "time"

const (
	DefaultPath     = "/etc/datacollector.json"
	DefaultEndpoint = "https://jsonplaceholder.typicode.com/posts"
	DefaultInterval = "@every 10s"
	DefaultIDPath   = "/var/lib/datacollector/device-id"
	DefaultTopic    = "devicedata/{device_id}/power"

	// MinWatchInterval is the shortest accepted device polling period.
	MinWatchInterval = 100 * time.Millisecond
)

type Config interface {
	Endpoint() string
	Interval() string
	RequestTimeout() time.Duration
	WatchInterval() time.Duration
	AutoStart() bool
	DeviceIDPath() string
	HistoryPath() string
	MQTTTopic() string
	AllowNonRootAccess() bool

	SetEndpoint(string) error
	SetInterval(string) error
	SetRequestTimeout(time.Duration) error
	SetWatchInterval(time.Duration) error
	SetAutoStart(bool)
	SetDeviceIDPath(string)
	SetHistoryPath(string)
	SetMQTTTopic(string)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
