// Package transport delivers encoded envelopes to the remote collector.
// It never retries; whether to retry is the caller's decision.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/devicedata/datacollector/pkg/envelope"
	"github.com/devicedata/datacollector/pkg/version"
)

// Sender delivers one envelope.
type Sender interface {
	Send(ctx context.Context, env envelope.Envelope) error
}

// Options configures a Sender.
type Options struct {
	// Endpoint is the target URL. http(s) selects HTTPClient; mqtt, tcp,
	// ssl and ws select MQTTPublisher.
	Endpoint string
	// Timeout bounds a single delivery. Zero means no extra bound beyond
	// the caller's context.
	Timeout time.Duration
	// UserAgent defaults to version.UserAgent().
	UserAgent string
	// MQTTTopic may contain {device_id}.
	MQTTTopic string
	DeviceID  string
}

// New returns the Sender matching the endpoint scheme.
func New(opts Options) (Sender, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint %q: %w", opts.Endpoint, err)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPClient(opts), nil
	case "mqtt", "tcp", "ssl", "ws", "wss":
		return NewMQTTPublisher(opts), nil
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}
