package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/devicedata/datacollector/pkg/collector"
)

// EnvPrefix prefixes every environment override, e.g.
// DATACOLLECTOR_ENDPOINT or DATACOLLECTOR_REQUEST_TIMEOUT.
const EnvPrefix = "DATACOLLECTOR"

var envKeys = map[string]string{
	"endpoint":           "ENDPOINT",
	"interval":           "INTERVAL",
	"requestTimeout":     "REQUEST_TIMEOUT",
	"watchInterval":      "WATCH_INTERVAL",
	"autoStart":          "AUTO_START",
	"deviceIdPath":       "DEVICE_ID_PATH",
	"historyPath":        "HISTORY_PATH",
	"mqttTopic":          "MQTT_TOPIC",
	"allowNonRootAccess": "ALLOW_NON_ROOT_ACCESS",
}

// Env layers environment variables over another Config. Overrides live in
// memory only: Save writes the underlying values.
type Env struct {
	Config
	v *viper.Viper
}

var _ Config = &Env{}

// ApplyEnv loads envFile (if it exists) into the process environment and
// returns base overlaid with DATACOLLECTOR_* variables. An empty envFile
// skips the dotenv step.
func ApplyEnv(base Config, envFile string) (*Env, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, pkgerrors.Wrapf(err, "failed to load env file %s", envFile)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for key, env := range envKeys {
		if err := v.BindEnv(key, EnvPrefix+"_"+env); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to bind %s", key)
		}
	}

	e := &Env{Config: base, v: v}
	if err := e.validate(); err != nil {
		return nil, err
	}

	if set := e.Overridden(); len(set) > 0 {
		logrus.WithField("keys", strings.Join(set, ",")).Info("config overridden by environment")
	}
	return e, nil
}

// Overridden lists the keys currently set from the environment.
func (e *Env) Overridden() []string {
	var keys []string
	for key := range envKeys {
		if e.v.IsSet(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (e *Env) validate() error {
	if e.v.IsSet("endpoint") {
		if err := ValidateEndpoint(e.v.GetString("endpoint")); err != nil {
			return err
		}
	}
	if e.v.IsSet("interval") {
		if _, err := collector.ParseSchedule(e.v.GetString("interval")); err != nil {
			return err
		}
	}
	for key, check := range map[string]func(time.Duration) error{
		"requestTimeout": ValidateRequestTimeout,
		"watchInterval":  ValidateWatchInterval,
	} {
		if !e.v.IsSet(key) {
			continue
		}
		if err := validateDurationString(EnvPrefix+"_"+envKeys[key], e.v.GetString(key), check); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) Endpoint() string {
	if e.v.IsSet("endpoint") {
		return e.v.GetString("endpoint")
	}
	return e.Config.Endpoint()
}

func (e *Env) Interval() string {
	if e.v.IsSet("interval") {
		return e.v.GetString("interval")
	}
	return e.Config.Interval()
}

func (e *Env) RequestTimeout() time.Duration {
	if e.v.IsSet("requestTimeout") {
		return e.v.GetDuration("requestTimeout")
	}
	return e.Config.RequestTimeout()
}

func (e *Env) WatchInterval() time.Duration {
	if e.v.IsSet("watchInterval") {
		return e.v.GetDuration("watchInterval")
	}
	return e.Config.WatchInterval()
}

func (e *Env) AutoStart() bool {
	if e.v.IsSet("autoStart") {
		return e.v.GetBool("autoStart")
	}
	return e.Config.AutoStart()
}

func (e *Env) DeviceIDPath() string {
	if e.v.IsSet("deviceIdPath") {
		return e.v.GetString("deviceIdPath")
	}
	return e.Config.DeviceIDPath()
}

func (e *Env) HistoryPath() string {
	if e.v.IsSet("historyPath") {
		return e.v.GetString("historyPath")
	}
	return e.Config.HistoryPath()
}

func (e *Env) MQTTTopic() string {
	if e.v.IsSet("mqttTopic") {
		return e.v.GetString("mqttTopic")
	}
	return e.Config.MQTTTopic()
}

func (e *Env) AllowNonRootAccess() bool {
	if e.v.IsSet("allowNonRootAccess") {
		return e.v.GetBool("allowNonRootAccess")
	}
	return e.Config.AllowNonRootAccess()
}

func (e *Env) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"endpoint":           e.Endpoint(),
		"interval":           e.Interval(),
		"requestTimeout":     e.RequestTimeout().String(),
		"watchInterval":      e.WatchInterval().String(),
		"autoStart":          e.AutoStart(),
		"deviceIdPath":       e.DeviceIDPath(),
		"historyPath":        e.HistoryPath(),
		"mqttTopic":          e.MQTTTopic(),
		"allowNonRootAccess": e.AllowNonRootAccess(),
		"envOverrides":       e.Overridden(),
	}
}
