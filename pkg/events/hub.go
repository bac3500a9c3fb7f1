package events

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// SubscriberBuffer is how many events a subscriber may fall behind before
// it starts missing them.
const SubscriberBuffer = 16

// EventHub fans published events out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event, and the miss
// is counted against it.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan Event]*subscription
	closed bool
}

type subscription struct {
	mu      sync.Mutex
	dropped uint64
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan Event]*subscription)}
}

// Subscribe registers a new listener. The channel is closed by Unsubscribe
// or Close; subscribing to a closed hub returns an already closed channel.
func (h *EventHub) Subscribe() chan Event {
	ch := make(chan Event, SubscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = &subscription{}
	return ch
}

// Unsubscribe removes ch and closes it. Unknown or already removed channels
// are ignored.
func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	sub, ok := h.subs[ch]
	if ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()

	if ok && sub.dropped > 0 {
		logrus.WithField("dropped", sub.dropped).Debug("event subscriber left after missing events")
	}
}

// Publish encodes payload once and offers it to every subscriber. It is a
// no-op on a nil hub.
func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		logrus.Debugf("failed to marshal %s event: %v", name, err)
		return
	}
	msg := Event{Name: name, Data: b}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch, sub := range h.subs {
		select {
		case ch <- msg:
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		}
	}
}

// Dropped returns how many events ch has missed so far, or 0 if ch is not
// subscribed.
func (h *EventHub) Dropped(ch chan Event) uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subs[ch]
	if !ok {
		return 0
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.dropped
}

// Close unsubscribes everyone. Later subscriptions get closed channels.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
