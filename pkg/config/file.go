package config

import (
	"encoding/json"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Endpoint:           ptr.To(DefaultEndpoint),
		Interval:           ptr.To(DefaultInterval),
		RequestTimeout:     ptr.To("15s"),
		WatchInterval:      ptr.To("2s"),
		AutoStart:          ptr.To(true),
		DeviceIDPath:       ptr.To(DefaultIDPath),
		HistoryPath:        ptr.To(""),
		MQTTTopic:          ptr.To(DefaultTopic),
		AllowNonRootAccess: ptr.To(false),
	}

	supportedSchemes = []string{"http", "https", "mqtt", "tcp", "ssl", "ws", "wss"}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk form. Unset fields fall back to defaults.
// Durations are Go duration strings.
type RawFileConfig struct {
	Endpoint           *string `json:"endpoint,omitempty"`
	Interval           *string `json:"interval,omitempty"`
	RequestTimeout     *string `json:"requestTimeout,omitempty"`
	WatchInterval      *string `json:"watchInterval,omitempty"`
	AutoStart          *bool   `json:"autoStart,omitempty"`
	DeviceIDPath       *string `json:"deviceIdPath,omitempty"`
	HistoryPath        *string `json:"historyPath,omitempty"`
	MQTTTopic          *string `json:"mqttTopic,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty"`
}

// NewRawFileConfigFromConfig captures every effective value of c.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		Endpoint:           ptr.To(c.Endpoint()),
		Interval:           ptr.To(c.Interval()),
		RequestTimeout:     ptr.To(c.RequestTimeout().String()),
		WatchInterval:      ptr.To(c.WatchInterval().String()),
		AutoStart:          ptr.To(c.AutoStart()),
		DeviceIDPath:       ptr.To(c.DeviceIDPath()),
		HistoryPath:        ptr.To(c.HistoryPath()),
		MQTTTopic:          ptr.To(c.MQTTTopic()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
	}, nil
}

func (f *File) raw() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) Endpoint() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().Endpoint, *defaultFileConfig.Endpoint)
}

func (f *File) Interval() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().Interval, *defaultFileConfig.Interval)
}

func (f *File) RequestTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return durationOr(f.raw().RequestTimeout, *defaultFileConfig.RequestTimeout)
}

func (f *File) WatchInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return durationOr(f.raw().WatchInterval, *defaultFileConfig.WatchInterval)
}

func (f *File) AutoStart() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().AutoStart, *defaultFileConfig.AutoStart)
}

func (f *File) DeviceIDPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().DeviceIDPath, *defaultFileConfig.DeviceIDPath)
}

func (f *File) HistoryPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().HistoryPath, *defaultFileConfig.HistoryPath)
}

func (f *File) MQTTTopic() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().MQTTTopic, *defaultFileConfig.MQTTTopic)
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return ptr.Deref(f.raw().AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetEndpoint(s string) error {
	if err := ValidateEndpoint(s); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().Endpoint = &s
	return nil
}

func (f *File) SetInterval(s string) error {
	if _, err := collector.ParseSchedule(s); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().Interval = &s
	return nil
}

func (f *File) SetRequestTimeout(d time.Duration) error {
	if err := ValidateRequestTimeout(d); err != nil {
		return err
	}
	s := d.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().RequestTimeout = &s
	return nil
}

func (f *File) SetWatchInterval(d time.Duration) error {
	if err := ValidateWatchInterval(d); err != nil {
		return err
	}
	s := d.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().WatchInterval = &s
	return nil
}

func (f *File) SetAutoStart(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().AutoStart = &b
}

func (f *File) SetDeviceIDPath(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().DeviceIDPath = &s
}

func (f *File) SetHistoryPath(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().HistoryPath = &s
}

func (f *File) SetMQTTTopic(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().MQTTTopic = &s
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw().AllowNonRootAccess = &b
}

// Validate checks values that setters would have rejected but a hand-edited
// file may still contain.
func (f *File) Validate() error {
	if err := ValidateEndpoint(f.Endpoint()); err != nil {
		return err
	}
	if _, err := collector.ParseSchedule(f.Interval()); err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if v := f.raw().RequestTimeout; v != nil {
		if err := validateDurationString("requestTimeout", *v, ValidateRequestTimeout); err != nil {
			return err
		}
	}
	if v := f.raw().WatchInterval; v != nil {
		if err := validateDurationString("watchInterval", *v, ValidateWatchInterval); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRequestTimeout requires a positive per-send timeout.
func ValidateRequestTimeout(d time.Duration) error {
	if d <= 0 {
		return pkgerrors.Errorf("request timeout must be positive, got %s", d)
	}
	return nil
}

// ValidateWatchInterval bounds how often the device is polled for changes.
func ValidateWatchInterval(d time.Duration) error {
	if d < MinWatchInterval {
		return pkgerrors.Errorf("watch interval must be at least %s, got %s", MinWatchInterval, d)
	}
	return nil
}

func validateDurationString(name, v string, check func(time.Duration) error) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid %s %q", name, v)
	}
	return pkgerrors.Wrapf(check(d), "invalid %s", name)
}

// ValidateEndpoint accepts absolute http(s) and mqtt broker URLs.
func ValidateEndpoint(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid endpoint %q", s)
	}
	if u.Host == "" {
		return pkgerrors.Errorf("endpoint %q has no host", s)
	}
	for _, scheme := range supportedSchemes {
		if strings.EqualFold(u.Scheme, scheme) {
			return nil
		}
	}
	return pkgerrors.Errorf("unsupported endpoint scheme %q", u.Scheme)
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means all defaults. Keep f.c non-nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Read everything so an empty file can be told apart from bad JSON.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// Path is the file backing this config.
func (f *File) Path() string {
	return f.filepath
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"endpoint":           f.Endpoint(),
		"interval":           f.Interval(),
		"requestTimeout":     f.RequestTimeout().String(),
		"watchInterval":      f.WatchInterval().String(),
		"autoStart":          f.AutoStart(),
		"deviceIdPath":       f.DeviceIDPath(),
		"historyPath":        f.HistoryPath(),
		"mqttTopic":          f.MQTTTopic(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}

func durationOr(v *string, def string) time.Duration {
	s := ptr.Deref(v, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(def)
	}
	return d
}
