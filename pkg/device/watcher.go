package device

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/powerinfo"
)

const defaultWatchInterval = 2 * time.Second

// Watcher turns a polled read function into change notifications. Polling
// only runs while there is at least one subscriber.
type Watcher struct {
	read     func() (powerinfo.Reading, error)
	interval time.Duration

	mu     sync.Mutex
	subs   map[int]func(powerinfo.Reading)
	nextID int
	last   *powerinfo.Reading
	stopCh chan struct{}
}

// NewWatcher returns a Watcher polling read every interval.
func NewWatcher(read func() (powerinfo.Reading, error), interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watcher{
		read:     read,
		interval: interval,
		subs:     make(map[int]func(powerinfo.Reading)),
	}
}

// Subscribe registers cb and starts polling if needed.
func (w *Watcher) Subscribe(cb func(powerinfo.Reading)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = cb
	if w.stopCh == nil {
		w.stopCh = make(chan struct{})
		go w.run(w.stopCh)
	}
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { w.unsubscribe(id) })
	}
}

func (w *Watcher) unsubscribe(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.subs, id)
	if len(w.subs) == 0 && w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
		w.last = nil
	}
}

func (w *Watcher) run(stopCh chan struct{}) {
	logrus.Debug("device watcher started")
	defer logrus.Debug("device watcher stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll()
	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-stopCh:
			return
		}
	}
}

// poll reads once and notifies subscribers if level or state changed.
func (w *Watcher) poll() {
	r, err := w.read()
	if err != nil {
		logrus.Debugf("failed to read device state: %v", err)
		return
	}

	w.mu.Lock()
	if w.last != nil && w.last.SameBattery(r) {
		w.mu.Unlock()
		return
	}
	w.last = &r
	subs := make([]func(powerinfo.Reading), 0, len(w.subs))
	for _, cb := range w.subs {
		subs = append(subs, cb)
	}
	w.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"level": r.Level,
		"state": r.State,
	}).Trace("battery changed")

	for _, cb := range subs {
		cb(r)
	}
}
