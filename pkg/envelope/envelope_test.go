package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/powerinfo"
	"github.com/devicedata/datacollector/pkg/sample"
)

var testTime = time.Date(2025, 8, 9, 12, 30, 15, 123000000, time.UTC)

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		reading powerinfo.Reading
	}{
		{
			name: "charging",
			reading: powerinfo.Reading{
				Level: 0.42, State: powerinfo.Charging, DeviceID: "A1B2", DeviceModel: "MacBookPro18,3",
			},
		},
		{
			name: "unknown level",
			reading: powerinfo.Reading{
				Level: powerinfo.UnknownLevel, State: powerinfo.Unknown, LowPower: true,
			},
		},
		{
			name: "full with unicode model",
			reading: powerinfo.Reading{
				Level: 1, State: powerinfo.Full, DeviceID: "id", DeviceModel: "ThinkPad \"X1\" ✓",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sample.New(tt.reading, testTime)

			env, err := Encode(s)
			require.NoError(t, err)

			got, err := Decode(env)
			require.NoError(t, err)
			assert.True(t, s.Equal(got), "decoded sample differs: %+v vs %+v", s, got)
		})
	}
}

func TestCanonicalJSON(t *testing.T) {
	s := sample.New(powerinfo.Reading{
		Level:       0.42,
		State:       powerinfo.Charging,
		LowPower:    false,
		DeviceID:    "device-1",
		DeviceModel: "iPhone",
	}, testTime)

	env, err := Encode(s)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Data)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"batteryLevel":0.42,"batteryState":"charging","isLowPowerMode":false`)
	assert.Equal(t,
		`{"batteryLevel":0.42,"batteryState":"charging","isLowPowerMode":false,"timestamp":"2025-08-09T12:30:15.123Z","deviceId":"device-1","deviceModel":"iPhone"}`,
		string(raw))
}

func TestChecksumDeterministic(t *testing.T) {
	s := sample.New(powerinfo.Reading{Level: 0.8, State: powerinfo.Unplugged, DeviceID: "x"}, testTime)

	env1, err := Encode(s)
	require.NoError(t, err)
	env2, err := Encode(s)
	require.NoError(t, err)
	assert.Equal(t, env1, env2)

	raw, err := base64.StdEncoding.DecodeString(env1.Data)
	require.NoError(t, err)
	assert.Equal(t, env1.Checksum, Checksum(raw))
}

func TestChecksumKnownValues(t *testing.T) {
	// FNV-1a 64 reference values.
	assert.Equal(t, "14695981039346656037", Checksum(nil))
	assert.Equal(t, "12638187200555641996", Checksum([]byte("a")))
}

func TestDecodeDetectsCorruption(t *testing.T) {
	s := sample.New(powerinfo.Reading{Level: 0.5, State: powerinfo.Charging}, testTime)
	env, err := Encode(s)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Data)
	require.NoError(t, err)
	corrupted := strings.Replace(string(raw), "0.5", "0.6", 1)
	env.Data = base64.StdEncoding.EncodeToString([]byte(corrupted))

	_, err = Decode(env)
	assert.True(t, errors.Is(err, ErrChecksumMismatch), "got %v", err)
}

func TestEncodeInvalidLevel(t *testing.T) {
	s := sample.New(powerinfo.Reading{Level: math.NaN()}, testTime)

	_, err := Encode(s)
	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
}

func TestEnvelopeWireFormat(t *testing.T) {
	b, err := json.Marshal(Envelope{Data: "ZGF0YQ==", Checksum: "42"})
	require.NoError(t, err)
	assert.Equal(t, `{"data":"ZGF0YQ==","checksum":"42"}`, string(b))
}
