package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/config"
)

type statusData struct {
	state  *collector.State
	config *config.RawFileConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetState()
	if err != nil {
		return nil, fmt.Errorf("failed to get collector state: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{state: st, config: conf}, nil
}

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the collector",
		Long:    `Get collector state, the latest battery reading, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), newStatusJSON(data))
			}

			printStatus(cmd.OutOrStdout(), data, time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}

func printStatus(w io.Writer, data *statusData, now time.Time) {
	st := data.state
	conf := config.NewFileFromConfig(data.config, "")

	fmt.Fprintln(w, bold("Monitoring:"))
	fmt.Fprintln(w, "  Running: "+bool2Text(st.IsMonitoring))
	fmt.Fprintf(w, "  Interval: %s\n", st.Interval)
	fmt.Fprintf(w, "  Sent: %s\n", bold("%d", st.SentDataCount))
	if st.FailedCount > 0 {
		fmt.Fprintf(w, "  Failed: %d\n", st.FailedCount)
	}
	fmt.Fprintf(w, "  Last update: %s\n", formatAgo(st.LastUpdateTime, now))
	if st.LastError != "" {
		fmt.Fprintf(w, "  Last error: %s\n", st.LastError)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Battery status:"))
	fmt.Fprintf(w, "  Level: %s\n", bold("%s", formatLevel(st.CurrentBatteryLevel)))
	fmt.Fprintf(w, "  State: %s\n", st.CurrentBatteryState)
	fmt.Fprintln(w, "  Low power mode: "+bool2Text(st.IsLowPowerMode))
	fmt.Fprintf(w, "  Device: %s (%s)\n", st.DeviceID, st.DeviceModel)
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Configuration:"))
	fmt.Fprintf(w, "  Endpoint: %s\n", conf.Endpoint())
	fmt.Fprintf(w, "  Request timeout: %s\n", conf.RequestTimeout())
	fmt.Fprintln(w, "  Start on boot: "+bool2Text(conf.AutoStart()))
	history := conf.HistoryPath()
	if history == "" {
		history = "disabled"
	}
	fmt.Fprintf(w, "  History: %s\n", history)
	fmt.Fprintln(w, "  Allow non-root access: "+bool2Text(conf.AllowNonRootAccess()))
}
