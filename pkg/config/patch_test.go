package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/utils/ptr"
)

func TestApplyPatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f := NewFileFromConfig(nil, path)

	changed, err := Apply(f, &RawFileConfig{
		Endpoint:       ptr.To("https://example.com/ingest"),
		Interval:       ptr.To("@every 30s"),
		RequestTimeout: ptr.To("3s"),
		WatchInterval:  ptr.To("500ms"),
		AutoStart:      ptr.To(false),
		DeviceIDPath:   ptr.To("/tmp/device-id"),
		HistoryPath:    ptr.To("/tmp/history.db"),
		MQTTTopic:      ptr.To("power/{device_id}"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"endpoint", "interval", "requestTimeout", "watchInterval",
		"autoStart", "deviceIdPath", "historyPath", "mqttTopic",
	}, changed)

	assert.Equal(t, "https://example.com/ingest", f.Endpoint())
	assert.Equal(t, "@every 30s", f.Interval())
	assert.Equal(t, 3*time.Second, f.RequestTimeout())
	assert.Equal(t, 500*time.Millisecond, f.WatchInterval())
	assert.False(t, f.AutoStart())
	assert.Equal(t, "/tmp/device-id", f.DeviceIDPath())
	assert.Equal(t, "/tmp/history.db", f.HistoryPath())
	assert.Equal(t, "power/{device_id}", f.MQTTTopic())
	assert.False(t, f.AllowNonRootAccess())

	require.NoError(t, f.Save())
	g, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "@every 30s", g.Interval())
}

func TestApplyPatchIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		patch *RawFileConfig
	}{
		{name: "endpoint", patch: &RawFileConfig{Endpoint: ptr.To("ftp://example.com")}},
		{name: "interval", patch: &RawFileConfig{Interval: ptr.To("whenever")}},
		{name: "requestTimeout", patch: &RawFileConfig{RequestTimeout: ptr.To("0s")}},
		{name: "watchInterval", patch: &RawFileConfig{WatchInterval: ptr.To("1ms")}},
		{name: "deviceIdPath", patch: &RawFileConfig{DeviceIDPath: ptr.To("")}},
		{name: "mqttTopic", patch: &RawFileConfig{MQTTTopic: ptr.To("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFileFromConfig(nil, "")
			tt.patch.AutoStart = ptr.To(false)

			changed, err := Apply(f, tt.patch)
			assert.Error(t, err)
			assert.Empty(t, changed)
			assert.True(t, f.AutoStart())
			assert.Equal(t, DefaultEndpoint, f.Endpoint())
		})
	}
}

func TestApplyPatchThroughEnv(t *testing.T) {
	t.Setenv("DATACOLLECTOR_INTERVAL", "@every 5s")
	path := filepath.Join(t.TempDir(), "config.json")
	e, err := ApplyEnv(NewFileFromConfig(nil, path), "")
	require.NoError(t, err)

	_, err = Apply(e, &RawFileConfig{Interval: ptr.To("@every 1m")})
	require.NoError(t, err)
	require.NoError(t, e.Save())

	// The environment still wins in memory; the file keeps the patched value.
	assert.Equal(t, "@every 5s", e.Interval())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"interval": "@every 1m"`)
}

func TestApplyNil(t *testing.T) {
	_, err := Apply(nil, &RawFileConfig{})
	assert.Error(t, err)

	changed, err := Apply(NewFileFromConfig(nil, ""), nil)
	assert.NoError(t, err)
	assert.Empty(t, changed)
}
