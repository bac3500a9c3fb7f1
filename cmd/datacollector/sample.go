package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/device"
	"github.com/devicedata/datacollector/pkg/envelope"
	"github.com/devicedata/datacollector/pkg/sample"
	"github.com/devicedata/datacollector/pkg/transport"
)

type sampleOutput struct {
	Sample   sampleJSON        `json:"sample"`
	Envelope envelope.Envelope `json:"envelope"`
}

type sampleJSON struct {
	BatteryLevel   float64   `json:"batteryLevel"`
	BatteryState   string    `json:"batteryState"`
	IsLowPowerMode bool      `json:"isLowPowerMode"`
	Timestamp      time.Time `json:"timestamp"`
	DeviceID       string    `json:"deviceId"`
	DeviceModel    string    `json:"deviceModel"`
}

func NewSampleCommand() *cobra.Command {
	send := false
	deviceID := ""

	cmd := &cobra.Command{
		Use:         "sample",
		Short:       "Read the device once and print the sample and its envelope",
		GroupID:     gAdvanced,
		Annotations: map[string]string{offline: ""},
		Long: `Read the device directly, without the daemon, and print the resulting sample together
with the envelope that would be sent. With --send the envelope is delivered once to the
configured endpoint and the outcome is reported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.NewFile(configPath)
			if err != nil {
				return err
			}
			conf, err := config.ApplyEnv(file, envFile)
			if err != nil {
				return err
			}

			if deviceID == "" {
				deviceID = resolveDeviceID(conf.DeviceIDPath())
			}

			r, err := device.NewBatteryProvider(deviceID, conf.WatchInterval()).Read()
			if err != nil {
				return fmt.Errorf("failed to read device: %w", err)
			}
			s := sample.New(r, time.Now())

			env, err := envelope.Encode(s)
			if err != nil {
				return err
			}

			if err := printJSON(cmd.OutOrStdout(), newSampleOutput(s, env)); err != nil {
				return err
			}

			if !send {
				return nil
			}
			return sendOnce(cmd.OutOrStdout(), conf, deviceID, env)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&send, "send", false, "deliver the envelope to the configured endpoint")
	f.StringVar(&deviceID, "device-id", "", "device id to use instead of the stored one")

	return cmd
}

// resolveDeviceID reads the daemon's stored id, falling back to a throwaway
// one when the store is not accessible (e.g. when not running as root).
func resolveDeviceID(path string) string {
	id, err := device.LoadOrCreateID(path)
	if err != nil {
		id = uuid.New().String()
		logrus.Warnf("cannot use stored device id (%v), using temporary id %s", err, id)
	}
	return id
}

func newSampleOutput(s sample.Sample, env envelope.Envelope) sampleOutput {
	return sampleOutput{
		Sample: sampleJSON{
			BatteryLevel:   s.BatteryLevel(),
			BatteryState:   string(s.BatteryState()),
			IsLowPowerMode: s.IsLowPowerMode(),
			Timestamp:      s.Timestamp(),
			DeviceID:       s.DeviceID(),
			DeviceModel:    s.DeviceModel(),
		},
		Envelope: env,
	}
}

func sendOnce(w io.Writer, conf config.Config, deviceID string, env envelope.Envelope) error {
	sender, err := transport.New(transport.Options{
		Endpoint:  conf.Endpoint(),
		Timeout:   conf.RequestTimeout(),
		MQTTTopic: conf.MQTTTopic(),
		DeviceID:  deviceID,
	})
	if err != nil {
		return err
	}
	if c, ok := sender.(io.Closer); ok {
		defer c.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.RequestTimeout())
	defer cancel()

	start := time.Now()
	if err := sender.Send(ctx, env); err != nil {
		return fmt.Errorf("delivery to %s failed: %w", conf.Endpoint(), err)
	}
	fmt.Fprintf(w, "delivered to %s in %s\n", conf.Endpoint(), time.Since(start).Round(time.Millisecond))
	return nil
}
