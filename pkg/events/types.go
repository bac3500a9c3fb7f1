package events

import "encoding/json"

// Event name constants
const (
	// StateChanged carries a collector state snapshot.
	StateChanged = "state.changed"
	// BatteryChanged carries a powerinfo.Reading pushed by the device watcher.
	BatteryChanged = "battery.changed"
	// DeliveryFailed carries a DeliveryFailedEvent.
	DeliveryFailed = "delivery.failed"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// DeliveryFailedEvent is the typed payload for delivery.failed.
type DeliveryFailedEvent struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
	Ts         int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.DeliveryFailedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Kind, payload.StatusCode)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
