package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/events"
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

type fakeDaemon struct {
	state      collector.State
	monitoring []bool
	collects   int
}

func (d *fakeDaemon) GetState() (*collector.State, error) {
	st := d.state
	return &st, nil
}

func (d *fakeDaemon) SetMonitoring(enabled bool) (string, error) {
	d.monitoring = append(d.monitoring, enabled)
	return "ok", nil
}

func (d *fakeDaemon) Collect() (string, error) {
	d.collects++
	return "", errors.New("monitoring is not running")
}

func (d *fakeDaemon) SubscribeEvents(context.Context) (<-chan events.Event, error) {
	return nil, errors.New("no stream")
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestStateRendering(t *testing.T) {
	d := &fakeDaemon{}
	m := New(context.Background(), d)
	assert.Contains(t, m.View(), "connecting")

	now := time.Now()
	m, _ = update(t, m, stateMsg(collector.State{
		IsMonitoring:        true,
		SentDataCount:       7,
		FailedCount:         2,
		LastUpdateTime:      &now,
		CurrentBatteryLevel: 0.42,
		CurrentBatteryState: powerinfo.Charging,
		Interval:            "@every 10s",
	}))

	v := m.View()
	assert.Contains(t, v, "monitoring")
	assert.Contains(t, v, "42%")
	assert.Contains(t, v, "charging")
	assert.Contains(t, v, "Sent:        7")
	assert.Contains(t, v, "Failed:      2")
}

func TestReadingUpdatesBattery(t *testing.T) {
	m := New(context.Background(), &fakeDaemon{})
	m, _ = update(t, m, stateMsg(collector.State{CurrentBatteryLevel: -1}))
	assert.Contains(t, m.View(), "unknown")

	m, _ = update(t, m, readingMsg(powerinfo.Reading{Level: 1, State: powerinfo.Full}))
	assert.Contains(t, m.View(), "100%")
	assert.Contains(t, m.View(), "full")
}

func TestToggleMonitoring(t *testing.T) {
	d := &fakeDaemon{}
	m := New(context.Background(), d)
	m, _ = update(t, m, stateMsg(collector.State{IsMonitoring: true}))

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, statusMsg("ok"), msg)
	assert.Equal(t, []bool{false}, d.monitoring)
}

func TestCollectErrorShown(t *testing.T) {
	d := &fakeDaemon{}
	m := New(context.Background(), d)
	m, _ = update(t, m, stateMsg(collector.State{}))

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "monitoring is not running")
	assert.Equal(t, 1, d.collects)
}

func TestStreamFallbackPolls(t *testing.T) {
	m := New(context.Background(), &fakeDaemon{})
	m, cmd := update(t, m, m.subscribe()())
	assert.NotNil(t, cmd)
	assert.Contains(t, m.status, "polling")
}

func TestEventToMsg(t *testing.T) {
	msg := eventToMsg(events.Event{Name: events.DeliveryFailed, Data: []byte(`{"kind":"network","message":"boom","ts":1}`)})
	f, ok := msg.(failedMsg)
	require.True(t, ok)
	assert.Equal(t, "boom", f.Message)

	assert.Equal(t, otherEventMsg{}, eventToMsg(events.Event{Name: "something.else"}))
}

func TestQuit(t *testing.T) {
	m := New(context.Background(), &fakeDaemon{})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}
