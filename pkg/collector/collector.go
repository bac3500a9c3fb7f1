// Package collector owns the sampling schedule: while running it reads the
// device on every tick, builds a sample and hands it to an asynchronous
// delivery, counting successful sends.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/device"
	"github.com/devicedata/datacollector/pkg/envelope"
	"github.com/devicedata/datacollector/pkg/events"
	"github.com/devicedata/datacollector/pkg/grant"
	"github.com/devicedata/datacollector/pkg/powerinfo"
	"github.com/devicedata/datacollector/pkg/sample"
	"github.com/devicedata/datacollector/pkg/transport"
)

const (
	defaultRequestTimeout = 15 * time.Second
	recentDeliveryCount   = 60
	missedCheckWindow     = time.Minute + 20*time.Second
	journalTimeout        = 5 * time.Second
)

// Journal receives every finished delivery attempt.
type Journal interface {
	Record(ctx context.Context, rec DeliveryRecord) error
}

// Options configures a Collector. Provider and Sender are required.
type Options struct {
	Provider device.Provider
	Sender   transport.Sender
	// Grant defaults to grant.New().
	Grant grant.Grant
	// Hub may be nil.
	Hub *events.EventHub
	// Journal may be nil.
	Journal Journal
	// Schedule is parsed by ParseSchedule; empty means DefaultSchedule.
	Schedule       string
	RequestTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time

	newTicker func(cron.Schedule) ticker
}

// Collector is the sampling scheduler. It is Stopped after New.
type Collector struct {
	provider       device.Provider
	sender         transport.Sender
	grant          grant.Grant
	hub            *events.EventHub
	journal        Journal
	schedule       cron.Schedule
	requestTimeout time.Duration
	now            func() time.Time
	newTicker      func(cron.Schedule) ticker
	recorder       *TimeSeriesRecorder

	// ctx lives until Close and bounds every delivery.
	ctx    context.Context
	cancel context.CancelFunc

	inflight sync.WaitGroup

	// mu guards everything below. All published state is written under it.
	mu          sync.Mutex
	state       State
	running     bool
	closed      bool
	ticker      ticker
	stopCh      chan struct{}
	unsubscribe func()
}

// New builds a stopped collector and subscribes to device change
// notifications.
func New(opts Options) (*Collector, error) {
	if opts.Provider == nil {
		return nil, errors.New("device provider is required")
	}
	if opts.Sender == nil {
		return nil, errors.New("sender is required")
	}

	sched, err := ParseSchedule(opts.Schedule)
	if err != nil {
		return nil, err
	}
	interval := opts.Schedule
	if interval == "" {
		interval = DefaultSchedule
	}

	if opts.Grant == nil {
		opts.Grant = grant.New()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.newTicker == nil {
		opts.newTicker = newCronTicker
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		provider:       opts.Provider,
		sender:         opts.Sender,
		grant:          opts.Grant,
		hub:            opts.Hub,
		journal:        opts.Journal,
		schedule:       sched,
		requestTimeout: opts.RequestTimeout,
		now:            opts.Now,
		newTicker:      opts.newTicker,
		recorder:       NewTimeSeriesRecorder(recentDeliveryCount),
		ctx:            ctx,
		cancel:         cancel,
		state: State{
			CurrentBatteryLevel: powerinfo.UnknownLevel,
			CurrentBatteryState: powerinfo.Unknown,
			Interval:            interval,
		},
	}

	if r, err := c.provider.Read(); err == nil {
		c.applyReading(r)
	} else {
		logrus.Warnf("initial device read failed: %v", err)
	}

	c.unsubscribe = c.provider.OnChange(c.onDeviceChange)

	return c, nil
}

// State returns a snapshot of the published state.
func (c *Collector) State() State {
	c.mu.Lock()
	s := c.state.clone()
	c.mu.Unlock()

	s.RecentDeliveries = c.recorder.GetRecordsString()
	return s
}

// Running reports whether monitoring is active.
func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start begins monitoring and runs one cycle immediately. Starting a
// running collector does nothing.
func (c *Collector) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return nil
	}

	if err := c.grant.Acquire("Sampling battery state in the background"); err != nil {
		// Without the grant we may be suspended, which only delays ticks.
		logrus.Warnf("failed to acquire execution grant: %v", err)
	}

	t := c.newTicker(c.schedule)
	stopCh := make(chan struct{})
	c.ticker = t
	c.stopCh = stopCh
	c.running = true
	c.state.IsMonitoring = true
	snapshot := c.state.clone()
	c.mu.Unlock()

	logrus.WithField("interval", snapshot.Interval).Info("monitoring started")
	c.hub.Publish(events.StateChanged, snapshot)

	go c.loop(t, stopCh)
	c.cycle()

	return nil
}

// Stop ends monitoring. In-flight deliveries are not cancelled and still
// update counters when they finish. Stopping a stopped collector does
// nothing.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.ticker.Stop()
	c.ticker = nil
	c.stopCh = nil
	if err := c.grant.Release(); err != nil {
		logrus.Warnf("failed to release execution grant: %v", err)
	}
	c.state.IsMonitoring = false
	snapshot := c.state.clone()
	c.mu.Unlock()

	logrus.Info("monitoring stopped")
	c.hub.Publish(events.StateChanged, snapshot)
}

// Close stops monitoring, drops the device subscription and detaches
// pending deliveries: results arriving after Close are discarded.
func (c *Collector) Close() {
	c.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel()
}

// Carryover returns the counters and recent deliveries to hand to the
// collector that replaces this one. Take it after Close so that no late
// completion is missed.
func (c *Collector) Carryover() Carryover {
	c.mu.Lock()
	st := c.state.clone()
	c.mu.Unlock()

	return Carryover{
		LastUpdateTime: st.LastUpdateTime,
		SentDataCount:  st.SentDataCount,
		FailedCount:    st.FailedCount,
		LastError:      st.LastError,
		Deliveries:     c.recorder.GetRecords(),
	}
}

// Seed continues the counters of a previous collector. It only applies to a
// stopped collector.
func (c *Collector) Seed(co Carryover) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return ErrRunning
	}
	if co.LastUpdateTime != nil && (c.state.LastUpdateTime == nil || co.LastUpdateTime.After(*c.state.LastUpdateTime)) {
		t := *co.LastUpdateTime
		c.state.LastUpdateTime = &t
	}
	c.state.SentDataCount += co.SentDataCount
	c.state.FailedCount += co.FailedCount
	if c.state.LastError == "" {
		c.state.LastError = co.LastError
	}
	deliveries := make([]time.Time, 0, len(co.Deliveries))
	deliveries = append(deliveries, co.Deliveries...)
	c.recorder.Restore(append(deliveries, c.recorder.GetRecords()...))
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.hub.Publish(events.StateChanged, snapshot)
	return nil
}

// Wait blocks until all dispatched deliveries have finished.
func (c *Collector) Wait() {
	c.inflight.Wait()
}

// Collect runs one extra sampling cycle outside the schedule.
func (c *Collector) Collect() error {
	c.mu.Lock()
	running, closed := c.running, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !running {
		return ErrNotRunning
	}
	c.cycle()
	return nil
}

func (c *Collector) loop(t ticker, stopCh chan struct{}) {
	logrus.Debug("collector loop started")
	defer logrus.Debug("collector loop stopped")

	for {
		select {
		case <-t.C():
			// Stop may race with a pending tick; prefer stopping.
			select {
			case <-stopCh:
				return
			default:
			}
			c.cycle()
		case <-stopCh:
			return
		}
	}
}

// cycle reads the device, builds a sample and dispatches its delivery. It
// never waits for the network.
func (c *Collector) cycle() {
	r, err := c.provider.Read()
	if err != nil {
		logrus.Errorf("failed to read device state: %v", err)
		return
	}
	now := c.now()

	c.mu.Lock()
	c.applyReading(r)
	c.mu.Unlock()

	s := sample.New(r, now)

	logrus.WithFields(logrus.Fields{
		"deviceId": s.DeviceID(),
		"level":    r.Percent(),
		"state":    s.BatteryState(),
	}).Debug("sample collected")

	c.inflight.Add(1)
	go c.deliver(s)
}

func (c *Collector) deliver(s sample.Sample) {
	defer c.inflight.Done()

	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
			logrus.Error(err)
		}
		c.complete(s, err, time.Since(start))
	}()

	env, err := envelope.Encode(s)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
	defer cancel()
	err = c.sender.Send(ctx, env)
}

// complete applies the outcome of one delivery to the published state.
func (c *Collector) complete(s sample.Sample, err error, took time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		logrus.Debug("collector closed, discarding delivery result")
		return
	}

	rec := DeliveryRecord{
		SampleTime:   s.Timestamp(),
		DeviceID:     s.DeviceID(),
		BatteryLevel: s.BatteryLevel(),
		BatteryState: s.BatteryState(),
		LowPower:     s.IsLowPowerMode(),
		Success:      err == nil,
		Duration:     took,
	}

	if err == nil {
		now := c.now().Round(0)
		c.state.LastUpdateTime = &now
		c.state.SentDataCount++
		c.state.LastError = ""
		c.recorder.AddRecord(now)
	} else {
		c.state.FailedCount++
		c.state.LastError = err.Error()
		rec.Error = err.Error()
		rec.StatusCode = transport.StatusCodeOf(err)
		rec.ErrorKind = errorKind(err)
	}
	snapshot := c.state.clone()
	running := c.running
	c.mu.Unlock()

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"deviceId":   rec.DeviceID,
			"kind":       rec.ErrorKind,
			"statusCode": rec.StatusCode,
			"took":       took.Round(time.Millisecond).String(),
		}).Errorf("error sending data: %v", err)
		c.hub.Publish(events.DeliveryFailed, events.DeliveryFailedEvent{
			Kind:       rec.ErrorKind,
			StatusCode: rec.StatusCode,
			Message:    err.Error(),
			Ts:         time.Now().Unix(),
		})
	} else {
		logrus.WithFields(logrus.Fields{
			"sentDataCount": snapshot.SentDataCount,
			"took":          took.Round(time.Millisecond).String(),
		}).Debug("data delivered")
		if running {
			c.checkMissedDeliveries()
		}
	}
	c.hub.Publish(events.StateChanged, snapshot)

	if c.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if jerr := c.journal.Record(ctx, rec); jerr != nil {
			logrus.Warnf("failed to record delivery: %v", jerr)
		}
	}
}

// checkMissedDeliveries logs when fewer deliveries succeeded recently than
// the schedule should have produced. It reports whether some were missed.
func (c *Collector) checkMissedDeliveries() bool {
	interval := nominalInterval(c.schedule, time.Now())
	if interval <= 0 || interval > missedCheckWindow/2 {
		return false
	}

	count := c.recorder.GetRecordsIn(missedCheckWindow, interval)
	expected := int(missedCheckWindow / interval)
	minCount := expected - 1
	if count >= minCount {
		return false
	}
	// Right after start there is simply no history yet.
	if len(c.recorder.GetRecords()) < expected {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"deliveryCount":         count,
		"expectedDeliveryCount": expected,
		"recentRecords":         formatRelativeTimes(c.recorder.GetLastRecords(missedCheckWindow)),
	}).Info("possibly missed deliveries")
	return true
}

func (c *Collector) onDeviceChange(r powerinfo.Reading) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.applyReading(r)
	c.mu.Unlock()

	c.hub.Publish(events.BatteryChanged, r)
}

// applyReading must be called with mu held, or before the collector is shared.
func (c *Collector) applyReading(r powerinfo.Reading) {
	c.state.CurrentBatteryLevel = r.Level
	c.state.CurrentBatteryState = r.State
	c.state.IsLowPowerMode = r.LowPower
	c.state.DeviceID = r.DeviceID
	c.state.DeviceModel = r.DeviceModel
}

func errorKind(err error) string {
	var encErr *envelope.EncodingError
	if errors.As(err, &encErr) {
		return "encoding"
	}
	if k := transport.KindOf(err); k != 0 {
		return k.String()
	}
	return "unknown"
}
