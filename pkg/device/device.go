// Package device reads live power-supply state from the host and notifies
// subscribers when battery level or state changes.
package device

import (
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

// Provider is the collector's only view of the device.
type Provider interface {
	// Read returns the current readings. It must be cheap and must not block
	// on I/O that can hang.
	Read() (powerinfo.Reading, error)
	// OnChange registers cb for level/state changes. The returned function
	// removes the subscription and is safe to call more than once.
	OnChange(cb func(powerinfo.Reading)) (unsubscribe func())
}
