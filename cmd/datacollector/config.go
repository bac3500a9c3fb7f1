package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/config"
)

// configKeys maps each settable key to the field of a patch it fills.
var configKeys = map[string]func(p *config.RawFileConfig, v string) error{
	"endpoint":       func(p *config.RawFileConfig, v string) error { p.Endpoint = &v; return nil },
	"interval":       func(p *config.RawFileConfig, v string) error { p.Interval = &v; return nil },
	"requestTimeout": func(p *config.RawFileConfig, v string) error { p.RequestTimeout = &v; return nil },
	"watchInterval":  func(p *config.RawFileConfig, v string) error { p.WatchInterval = &v; return nil },
	"deviceIdPath":   func(p *config.RawFileConfig, v string) error { p.DeviceIDPath = &v; return nil },
	"historyPath":    func(p *config.RawFileConfig, v string) error { p.HistoryPath = &v; return nil },
	"mqttTopic":      func(p *config.RawFileConfig, v string) error { p.MQTTTopic = &v; return nil },
	"autoStart": func(p *config.RawFileConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("autoStart takes true or false, got %q", v)
		}
		p.AutoStart = &b
		return nil
	},
	"allowNonRootAccess": func(p *config.RawFileConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("allowNonRootAccess takes true or false, got %q", v)
		}
		p.AllowNonRootAccess = &b
		return nil
	},
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for k := range configKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// newConfigPatch turns key=value pairs into a partial config.
func newConfigPatch(pairs []string) (*config.RawFileConfig, error) {
	patch := &config.RawFileConfig{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		set, ok := configKeys[key]
		if !ok {
			return nil, fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(configKeyNames(), ", "))
		}
		if err := set(patch, value); err != nil {
			return nil, err
		}
	}
	return patch, nil
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or change the daemon configuration",
		GroupID: gAdvanced,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := apiClient.GetConfig()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), conf)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set key=value...",
		Short: "Change configuration values",
		Long: `Change one or more configuration values. The daemon validates them, saves the config file
and rebuilds its collector. Counters are kept and monitoring resumes if it was running.

Keys: ` + strings.Join(configKeyNames(), ", ") + `

Example:
  datacollector config set "interval=@every 30s" requestTimeout=5s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			patch, err := newConfigPatch(args)
			if err != nil {
				return err
			}
			ret, err := apiClient.SetConfig(patch)
			if err != nil {
				return err
			}
			logrus.Info(ret)
			return nil
		},
	})

	return cmd
}
