// Package progress fans engine checkpoints out to any number of listeners.
// Delivery is best effort: a slow listener loses events instead of stalling
// the scrape.
package progress

import (
	"sync"
	"time"

	"github.com/kwittgruber/parceltrace/pkg/portal"
)

// Event is one engine checkpoint with its arrival time.
type Event struct {
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is a non-blocking publish/subscribe fan-out for Events.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener with the given buffer size and returns its
// channel plus an unsubscribe function. The channel is closed on
// unsubscribe and on hub Close.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber whose buffer has room.
// Full subscribers are skipped, never waited on.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ReporterFunc adapts the hub to the engine's progress callback.
func (h *Hub) ReporterFunc() portal.ProgressFunc {
	return func(step, message string, progress int) {
		h.Publish(Event{Step: step, Message: message, Progress: progress})
	}
}

// Close drops all subscribers and closes their channels. Publish becomes a
// no-op afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
