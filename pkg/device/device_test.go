package device

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/distatus/battery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicedata/datacollector/pkg/powerinfo"
)

func stubBattery(t *testing.T, bats []*battery.Battery, err error) {
	t.Helper()
	origGetAll, origLowPower, origModel := batteryGetAll, readLowPower, readModel
	batteryGetAll = func() ([]*battery.Battery, error) { return bats, err }
	readLowPower = func() bool { return true }
	readModel = func() string { return "TestModel" }
	t.Cleanup(func() {
		batteryGetAll, readLowPower, readModel = origGetAll, origLowPower, origModel
	})
}

func TestBatteryProviderRead(t *testing.T) {
	tests := []struct {
		name      string
		bats      []*battery.Battery
		err       error
		wantLevel float64
		wantState powerinfo.BatteryState
	}{
		{
			name:      "charging",
			bats:      []*battery.Battery{{Current: 42, Full: 100, State: battery.Charging}},
			wantLevel: 0.42,
			wantState: powerinfo.Charging,
		},
		{
			name:      "discharging",
			bats:      []*battery.Battery{{Current: 50, Full: 100, State: battery.Discharging}},
			wantLevel: 0.5,
			wantState: powerinfo.Unplugged,
		},
		{
			name:      "full clamps level",
			bats:      []*battery.Battery{{Current: 101, Full: 100, State: battery.Full}},
			wantLevel: 1,
			wantState: powerinfo.Full,
		},
		{
			name:      "no battery",
			wantLevel: powerinfo.UnknownLevel,
			wantState: powerinfo.Unknown,
		},
		{
			name:      "read error",
			err:       errors.New("boom"),
			wantLevel: powerinfo.UnknownLevel,
			wantState: powerinfo.Unknown,
		},
		{
			name:      "partial error still usable",
			bats:      []*battery.Battery{nil, {Current: 30, Full: 100, State: battery.Discharging}},
			err:       errors.New("partial"),
			wantLevel: 0.3,
			wantState: powerinfo.Unplugged,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubBattery(t, tt.bats, tt.err)

			p := NewBatteryProvider("dev-1", time.Second)
			r, err := p.Read()
			require.NoError(t, err)

			assert.InDelta(t, tt.wantLevel, r.Level, 1e-9)
			assert.Equal(t, tt.wantState, r.State)
			assert.True(t, r.LowPower)
			assert.Equal(t, "dev-1", r.DeviceID)
			assert.Equal(t, "TestModel", r.DeviceModel)
		})
	}
}

func TestWatcherNotifiesOnChange(t *testing.T) {
	var mu sync.Mutex
	level := 0.5
	read := func() (powerinfo.Reading, error) {
		mu.Lock()
		defer mu.Unlock()
		return powerinfo.Reading{Level: level, State: powerinfo.Unplugged}, nil
	}

	w := NewWatcher(read, 10*time.Millisecond)
	got := make(chan powerinfo.Reading, 10)
	unsubscribe := w.Subscribe(func(r powerinfo.Reading) { got <- r })
	defer unsubscribe()

	select {
	case r := <-got:
		assert.Equal(t, 0.5, r.Level)
	case <-time.After(time.Second):
		t.Fatal("no initial notification")
	}

	mu.Lock()
	level = 0.4
	mu.Unlock()

	select {
	case r := <-got:
		assert.Equal(t, 0.4, r.Level)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	// Unchanged readings must not notify again.
	select {
	case r := <-got:
		t.Fatalf("unexpected notification: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherStopsWithoutSubscribers(t *testing.T) {
	var reads atomic.Int32
	w := NewWatcher(func() (powerinfo.Reading, error) {
		reads.Add(1)
		return powerinfo.Reading{}, nil
	}, 5*time.Millisecond)

	unsubscribe := w.Subscribe(func(powerinfo.Reading) {})
	time.Sleep(30 * time.Millisecond)
	unsubscribe()
	unsubscribe()
	time.Sleep(20 * time.Millisecond)

	before := reads.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, reads.Load())
}

func TestLoadOrCreateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "device-id")

	id, err := LoadOrCreateID(path)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	again, err := LoadOrCreateID(path)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	regenerated, err := LoadOrCreateID(path)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", regenerated)
}
