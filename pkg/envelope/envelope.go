// Package envelope wraps a sample into the wire form posted to the remote
// collector:
//
//	{"data":"<base64 of canonical JSON>","checksum":"<decimal FNV-1a 64>"}
//
// The checksum only detects corruption. It is not a MAC and offers no
// protection against tampering.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/devicedata/datacollector/pkg/powerinfo"
	"github.com/devicedata/datacollector/pkg/sample"
)

// ErrChecksumMismatch is returned by Decode when the digest does not match
// the decoded bytes.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// EncodingError is returned when a sample cannot be serialized.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode sample: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Envelope is the encoded and checksummed form of a sample.
type Envelope struct {
	Data     string `json:"data"`
	Checksum string `json:"checksum"`
}

// canonical fixes the field order of the serialized sample.
type canonical struct {
	BatteryLevel   float64                `json:"batteryLevel"`
	BatteryState   powerinfo.BatteryState `json:"batteryState"`
	IsLowPowerMode bool                   `json:"isLowPowerMode"`
	Timestamp      string                 `json:"timestamp"`
	DeviceID       string                 `json:"deviceId"`
	DeviceModel    string                 `json:"deviceModel"`
}

// Canonical returns the canonical JSON of a sample: stable field order,
// RFC 3339 UTC timestamp, no trailing newline.
func Canonical(s sample.Sample) ([]byte, error) {
	b, err := json.Marshal(canonical{
		BatteryLevel:   s.BatteryLevel(),
		BatteryState:   s.BatteryState(),
		IsLowPowerMode: s.IsLowPowerMode(),
		Timestamp:      s.Timestamp().UTC().Format(time.RFC3339Nano),
		DeviceID:       s.DeviceID(),
		DeviceModel:    s.DeviceModel(),
	})
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return b, nil
}

// Checksum returns the decimal FNV-1a 64 digest of b.
func Checksum(b []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return strconv.FormatUint(h.Sum64(), 10)
}

// Encode serializes s and wraps it into an Envelope.
func Encode(s sample.Sample) (Envelope, error) {
	b, err := Canonical(s)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Data:     base64.StdEncoding.EncodeToString(b),
		Checksum: Checksum(b),
	}, nil
}

// Decode reverses Encode and verifies the checksum. The collector itself
// never decodes; this is for receivers and tools.
func Decode(env Envelope) (sample.Sample, error) {
	b, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return sample.Sample{}, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	if got := Checksum(b); got != env.Checksum {
		return sample.Sample{}, fmt.Errorf("%w: got %s, envelope says %s", ErrChecksumMismatch, got, env.Checksum)
	}

	var c canonical
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return sample.Sample{}, fmt.Errorf("failed to unmarshal sample: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, c.Timestamp)
	if err != nil {
		return sample.Sample{}, fmt.Errorf("failed to parse timestamp %q: %w", c.Timestamp, err)
	}

	return sample.New(powerinfo.Reading{
		Level:       c.BatteryLevel,
		State:       c.BatteryState,
		LowPower:    c.IsLowPowerMode,
		DeviceID:    c.DeviceID,
		DeviceModel: c.DeviceModel,
	}, ts), nil
}
