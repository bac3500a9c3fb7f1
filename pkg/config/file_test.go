package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, f.Endpoint())
	assert.Equal(t, DefaultInterval, f.Interval())
	assert.Equal(t, 15*time.Second, f.RequestTimeout())
	assert.Equal(t, 2*time.Second, f.WatchInterval())
	assert.True(t, f.AutoStart())
	assert.Equal(t, DefaultIDPath, f.DeviceIDPath())
	assert.Empty(t, f.HistoryPath())
	assert.Equal(t, DefaultTopic, f.MQTTTopic())
	assert.False(t, f.AllowNonRootAccess())
	assert.NoError(t, f.Validate())
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, f.Endpoint())
}

func TestInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := NewFile(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, f.SetEndpoint("https://example.com/ingest"))
	require.NoError(t, f.SetInterval("30s"))
	require.NoError(t, f.SetRequestTimeout(5*time.Second))
	require.NoError(t, f.SetWatchInterval(time.Second))
	f.SetAutoStart(false)
	f.SetHistoryPath("/tmp/history.db")
	f.SetAllowNonRootAccess(true)
	require.NoError(t, f.Save())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"endpoint": "https://example.com/ingest"`)
	assert.NotContains(t, string(b), "mqttTopic")

	g, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ingest", g.Endpoint())
	assert.Equal(t, "30s", g.Interval())
	assert.Equal(t, 5*time.Second, g.RequestTimeout())
	assert.Equal(t, time.Second, g.WatchInterval())
	assert.False(t, g.AutoStart())
	assert.Equal(t, "/tmp/history.db", g.HistoryPath())
	assert.True(t, g.AllowNonRootAccess())
	assert.Equal(t, DefaultTopic, g.MQTTTopic())
}

func TestSettersValidate(t *testing.T) {
	f := NewFileFromConfig(nil, "")

	assert.Error(t, f.SetEndpoint("ftp://example.com"))
	assert.Error(t, f.SetEndpoint("not a url"))
	assert.NoError(t, f.SetEndpoint("mqtt://broker:1883"))
	assert.Error(t, f.SetInterval("whenever"))
	assert.Error(t, f.SetRequestTimeout(0))
	assert.Error(t, f.SetWatchInterval(time.Millisecond))

	assert.Equal(t, "mqtt://broker:1883", f.Endpoint())
	assert.Equal(t, DefaultInterval, f.Interval())
}

func TestValidateHandEditedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"requestTimeout": "soon"}`), 0o644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Error(t, f.Validate())
	// Getters fall back to the default.
	assert.Equal(t, 15*time.Second, f.RequestTimeout())
}

func TestRawFileConfigFromConfig(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	f.SetMQTTTopic("power/{device_id}")

	raw, err := NewRawFileConfigFromConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "power/{device_id}", *raw.MQTTTopic)
	assert.Equal(t, "15s", *raw.RequestTimeout)
	assert.Equal(t, DefaultEndpoint, *raw.Endpoint)

	_, err = NewRawFileConfigFromConfig(nil)
	assert.Error(t, err)
}

func TestValidateWatchIntervalFloor(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{raw: "1ms", ok: false},
		{raw: "99ms", ok: false},
		{raw: "100ms", ok: true},
		{raw: "5s", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(`{"watchInterval": "`+tt.raw+`"}`), 0o644))

			f, err := NewFile(path)
			require.NoError(t, err)
			if tt.ok {
				assert.NoError(t, f.Validate())
			} else {
				assert.Error(t, f.Validate())
			}
		})
	}
}
