package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/envelope"
	"github.com/devicedata/datacollector/pkg/history"
	"github.com/devicedata/datacollector/pkg/powerinfo"
	"github.com/devicedata/datacollector/pkg/sample"
	"github.com/devicedata/datacollector/pkg/utils/ptr"
)

func init() {
	color.NoColor = true
}

func testStatusData() *statusData {
	last := time.Date(2025, 8, 9, 12, 0, 0, 0, time.UTC)
	return &statusData{
		state: &collector.State{
			IsMonitoring:        true,
			Interval:            "@every 10s",
			SentDataCount:       12,
			FailedCount:         1,
			LastUpdateTime:      &last,
			LastError:           "server error: 500",
			CurrentBatteryLevel: 0.42,
			CurrentBatteryState: powerinfo.Charging,
			DeviceID:            "device-1",
			DeviceModel:         "MacBookPro18,3",
		},
		config: &config.RawFileConfig{Endpoint: ptr.To("https://example.com/ingest")},
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 8, 9, 12, 0, 30, 0, time.UTC)
	printStatus(&buf, testStatusData(), now)

	out := buf.String()
	assert.Contains(t, out, "Running: ✔")
	assert.Contains(t, out, "Sent: 12")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "(30s ago)")
	assert.Contains(t, out, "Last error: server error: 500")
	assert.Contains(t, out, "Level: 42%")
	assert.Contains(t, out, "State: charging")
	assert.Contains(t, out, "Endpoint: https://example.com/ingest")
	assert.Contains(t, out, "History: disabled")
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(newStatusJSON(testStatusData()))
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, true, got["monitoring"]["running"])
	assert.EqualValues(t, 12, got["monitoring"]["sentDataCount"])
	assert.EqualValues(t, 42, got["battery"]["levelPercent"])
	assert.Equal(t, "charging", got["battery"]["state"])
	assert.Equal(t, "https://example.com/ingest", got["configuration"]["endpoint"])
	assert.Equal(t, config.DefaultInterval, got["configuration"]["interval"])

	data := testStatusData()
	data.state.CurrentBatteryLevel = powerinfo.UnknownLevel
	assert.Nil(t, newStatusJSON(data).Battery.LevelPercent)
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Contains(t, buf.String(), "no deliveries")

	buf.Reset()
	printHistory(&buf, []history.Entry{
		{SampleTime: time.Now(), BatteryLevel: 0.5, BatteryState: powerinfo.Full, Success: true, DurationMs: 120},
		{SampleTime: time.Now(), BatteryLevel: -1, BatteryState: powerinfo.Unknown, StatusCode: 503},
		{SampleTime: time.Now(), BatteryLevel: 0.1, BatteryState: powerinfo.Unplugged, ErrorKind: "network"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "50%")
	assert.Contains(t, lines[1], "ok")
	assert.Contains(t, lines[2], "failed (503)")
	assert.Contains(t, lines[2], "unknown")
	assert.Contains(t, lines[3], "failed (network)")
}

func TestPrintHistoryStats(t *testing.T) {
	var buf bytes.Buffer
	printHistoryStats(&buf, 3, &history.Stats{})
	assert.Empty(t, buf.String())

	printHistoryStats(&buf, 3, &history.Stats{Total: 40, Succeeded: 37})
	assert.Contains(t, buf.String(), "showing 3 of 40 recorded attempts: 37 succeeded, 3 failed")
}

func TestSampleOutput(t *testing.T) {
	s := sample.New(powerinfo.Reading{
		Level:    0.3,
		State:    powerinfo.Unplugged,
		DeviceID: "device-1",
	}, time.Date(2025, 8, 9, 12, 0, 0, 0, time.UTC))
	env, err := envelope.Encode(s)
	require.NoError(t, err)

	out := newSampleOutput(s, env)
	assert.Equal(t, "unplugged", out.Sample.BatteryState)
	assert.Equal(t, env.Checksum, out.Envelope.Checksum)

	decoded, err := envelope.Decode(out.Envelope)
	require.NoError(t, err)
	assert.True(t, decoded.Equal(s))
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{"daemon", "status", "start", "stop", "collect", "sample", "history", "config", "watch", "tray", "install", "uninstall", "version"} {
		c, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestNewConfigPatch(t *testing.T) {
	patch, err := newConfigPatch([]string{"interval=@every 30s", "autoStart=false", "endpoint=https://example.com/a=b"})
	require.NoError(t, err)
	assert.Equal(t, "@every 30s", *patch.Interval)
	assert.False(t, *patch.AutoStart)
	assert.Equal(t, "https://example.com/a=b", *patch.Endpoint)
	assert.Nil(t, patch.HistoryPath)

	for _, bad := range []string{"interval", "colour=blue", "autoStart=sometimes"} {
		_, err := newConfigPatch([]string{bad})
		assert.Error(t, err, bad)
	}
}
