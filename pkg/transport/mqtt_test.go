package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/envelope"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the publisher uses.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	connectToken *fakeToken
	disconnects  int
	published    []published
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectToken == nil {
		c.connected = true
		return doneToken(nil)
	}
	return c.connectToken
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken(nil)
}

func (c *fakeClient) setConnected(b bool) {
	c.mu.Lock()
	c.connected = b
	c.mu.Unlock()
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// newTestPublisher hands out the given clients in order.
func newTestPublisher(t *testing.T, clients ...*fakeClient) (*MQTTPublisher, *int) {
	t.Helper()
	p := NewMQTTPublisher(Options{Endpoint: "mqtt://broker:1883", DeviceID: "abc"})
	created := 0
	p.newClient = func(*mqtt.ClientOptions) mqtt.Client {
		require.Less(t, created, len(clients), "unexpected extra mqtt client")
		c := clients[created]
		created++
		return c
	}
	return p, &created
}

func TestMQTTPublisherSend(t *testing.T) {
	c := &fakeClient{}
	p, created := newTestPublisher(t, c)

	require.NoError(t, p.Send(context.Background(), testEnvelope))
	require.NoError(t, p.Send(context.Background(), testEnvelope))

	assert.Equal(t, 1, *created)
	require.Len(t, c.published, 2)
	assert.Equal(t, "devicedata/abc/power", c.published[0].topic)
	assert.EqualValues(t, 1, c.published[0].qos)

	var env envelope.Envelope
	require.NoError(t, json.Unmarshal(c.published[0].payload, &env))
	assert.Equal(t, testEnvelope, env)

	require.NoError(t, p.Close())
	assert.Equal(t, 1, c.disconnectCount())
}

func TestMQTTPublisherReusesReconnectingClient(t *testing.T) {
	c := &reconnectingClient{fakeClient: &fakeClient{}}
	p := NewMQTTPublisher(Options{Endpoint: "tcp://broker:1883", DeviceID: "abc"})
	created := 0
	p.newClient = func(*mqtt.ClientOptions) mqtt.Client {
		created++
		return c
	}

	require.NoError(t, p.Send(context.Background(), testEnvelope))
	// The broker dropped us and paho is reconnecting in the background.
	c.reconnecting = true
	require.NoError(t, p.Send(context.Background(), testEnvelope))

	assert.Equal(t, 1, created)
	assert.Zero(t, c.disconnectCount())
}

// reconnectingClient reports a closed connection that paho still counts as
// connected because auto-reconnect is running.
type reconnectingClient struct {
	*fakeClient
	reconnecting bool
}

func (c *reconnectingClient) IsConnectionOpen() bool {
	return !c.reconnecting && c.fakeClient.IsConnectionOpen()
}

func TestMQTTPublisherReplacesDeadClient(t *testing.T) {
	first, second := &fakeClient{}, &fakeClient{}
	p, created := newTestPublisher(t, first, second)

	require.NoError(t, p.Send(context.Background(), testEnvelope))
	first.setConnected(false)
	require.NoError(t, p.Send(context.Background(), testEnvelope))

	assert.Equal(t, 2, *created)
	assert.Equal(t, 1, first.disconnectCount())
	assert.Len(t, first.published, 1)
	assert.Len(t, second.published, 1)
}

func TestMQTTPublisherAbandonedConnect(t *testing.T) {
	hanging := &fakeClient{connectToken: &fakeToken{done: make(chan struct{})}}
	next := &fakeClient{}
	p, created := newTestPublisher(t, hanging, next)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Send(ctx, testEnvelope)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, hanging.disconnectCount())

	require.NoError(t, p.Send(context.Background(), testEnvelope))
	assert.Equal(t, 2, *created)
}

func TestMQTTPublisherConnectError(t *testing.T) {
	refused := &fakeClient{connectToken: doneToken(errors.New("connection refused"))}
	p, _ := newTestPublisher(t, refused)

	err := p.Send(context.Background(), testEnvelope)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, 1, refused.disconnectCount())
	assert.Empty(t, refused.published)
}
