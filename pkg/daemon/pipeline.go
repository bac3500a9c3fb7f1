package daemon

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/config"
	"github.com/devicedata/datacollector/pkg/device"
	"github.com/devicedata/datacollector/pkg/events"
	"github.com/devicedata/datacollector/pkg/history"
	"github.com/devicedata/datacollector/pkg/transport"
)

// drainTimeout bounds how long shutdown waits for in-flight deliveries.
const drainTimeout = 5 * time.Second

// pipeline is everything built from one config generation.
type pipeline struct {
	collector *collector.Collector
	provider  device.Provider
	sender    transport.Sender
	journal   *history.Journal
}

// newPipeline wires the provider, sender, journal and collector from conf.
func newPipeline(conf config.Config, hub *events.EventHub) (*pipeline, error) {
	id, err := device.LoadOrCreateID(conf.DeviceIDPath())
	if err != nil {
		return nil, err
	}

	provider := device.NewBatteryProvider(id, conf.WatchInterval())

	sender, err := transport.New(transport.Options{
		Endpoint:  conf.Endpoint(),
		Timeout:   conf.RequestTimeout(),
		MQTTTopic: conf.MQTTTopic(),
		DeviceID:  id,
	})
	if err != nil {
		return nil, err
	}

	p := &pipeline{provider: provider, sender: sender}

	opts := collector.Options{
		Provider:       provider,
		Sender:         sender,
		Hub:            hub,
		Schedule:       conf.Interval(),
		RequestTimeout: conf.RequestTimeout(),
	}

	if path := conf.HistoryPath(); path != "" {
		j, err := history.Open(path, 0)
		if err != nil {
			p.close()
			return nil, err
		}
		p.journal = j
		opts.Journal = j
	}

	c, err := collector.New(opts)
	if err != nil {
		p.close()
		return nil, err
	}
	p.collector = c

	logrus.WithFields(logrus.Fields{
		"deviceId": id,
		"endpoint": conf.Endpoint(),
		"interval": conf.Interval(),
	}).Info("collector ready")

	return p, nil
}

// close stops the collector, gives pending deliveries a short grace period
// and releases the sender and journal.
func (p *pipeline) close() {
	if p.collector != nil {
		p.collector.Stop()
		if !waitTimeout(p.collector.Wait, drainTimeout) {
			logrus.Warnf("in-flight deliveries did not finish within %s, abandoning them", drainTimeout)
		}
		p.collector.Close()
	}

	if c, ok := p.sender.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.Errorf("failed to close sender: %v", err)
		}
	}

	if p.journal != nil {
		if err := p.journal.Close(); err != nil {
			logrus.Errorf("failed to close history journal: %v", err)
		}
	}
}

func waitTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
