package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/envelope"
)

const defaultMQTTTopic = "devicedata/{device_id}/power"

// MQTTPublisher publishes envelopes to a broker instead of an HTTP endpoint.
// The connection is opened on first use and kept for later sends.
type MQTTPublisher struct {
	broker string
	topic  string

	mu     sync.Mutex
	client mqtt.Client
	opts   *mqtt.ClientOptions

	newClient func(*mqtt.ClientOptions) mqtt.Client
}

var _ Sender = &MQTTPublisher{}

// NewMQTTPublisher creates a publisher. It does not connect.
func NewMQTTPublisher(opts Options) *MQTTPublisher {
	topic := opts.MQTTTopic
	if topic == "" {
		topic = defaultMQTTTopic
	}

	broker := opts.Endpoint
	if strings.HasPrefix(broker, "mqtt://") {
		broker = "tcp://" + strings.TrimPrefix(broker, "mqtt://")
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(broker)
	co.SetClientID("datacollector-" + opts.DeviceID)
	co.SetAutoReconnect(true)
	co.SetKeepAlive(60 * time.Second)
	co.SetPingTimeout(10 * time.Second)
	if opts.Timeout > 0 {
		co.SetConnectTimeout(opts.Timeout)
	}
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logrus.Warnf("mqtt connection lost: %v", err)
	})

	return &MQTTPublisher{
		broker:    broker,
		topic:     formatTopic(topic, opts.DeviceID),
		opts:      co,
		newClient: mqtt.NewClient,
	}
}

// Topic returns the resolved topic envelopes are published to.
func (p *MQTTPublisher) Topic() string { return p.topic }

// Send publishes env at QoS 1 and waits for the broker acknowledgement or
// ctx expiry.
func (p *MQTTPublisher) Send(ctx context.Context, env envelope.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return &envelope.EncodingError{Err: err}
	}

	client, err := p.connect(ctx)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}

	token := client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return &Error{Kind: KindNetwork, Err: ctx.Err()}
	}
	if err := token.Error(); err != nil {
		return &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to publish: %w", err)}
	}

	logrus.WithFields(logrus.Fields{
		"topic": p.topic,
		"bytes": len(payload),
	}).Debug("data published successfully")
	return nil
}

// connect returns the shared client, creating it when there is none. Only
// one client per publisher may exist: the broker kicks off a second
// connection that uses the same client id.
func (p *MQTTPublisher) connect(ctx context.Context) (mqtt.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		// IsConnected stays true while paho is auto-reconnecting; publishes
		// queue until the link is back.
		if p.client.IsConnected() {
			return p.client, nil
		}
		p.client.Disconnect(0)
		p.client = nil
	}

	client := p.newClient(p.opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		// Stop the pending attempt so it cannot connect behind our back.
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", p.broker, err)
	}
	logrus.Infof("connected to MQTT broker %s", p.broker)
	p.client = client
	return client, nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
	return nil
}

func formatTopic(pattern, deviceID string) string {
	return strings.ReplaceAll(pattern, "{device_id}", deviceID)
}
