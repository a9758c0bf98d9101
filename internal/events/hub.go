// Package events fans out attendance activity to live subscribers.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the service.
const (
	CheckinRecorded    = "checkin.recorded"
	ReportRendered     = "report.rendered"
	EmailSent          = "email.sent"
	RetentionCollected = "retention.collected"
	RosterReloaded     = "roster.reloaded"
	SchedulerFired     = "scheduler.fired"
	SchedulerFailed    = "scheduler.failed"
)

const (
	defaultCapacity   = 256
	subscriberBacklog = 128
)

// Event is one published occurrence. Data holds the JSON payload.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Publisher is implemented by Hub; components depend on this instead.
type Publisher interface {
	Publish(eventType string, data any)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(string, any) {}

// Hub keeps the most recent events in a ring and forwards new ones to
// subscribers. Slow subscribers miss events rather than block publishers.
type Hub struct {
	seq atomic.Int64
	now func() time.Time

	mu     sync.Mutex
	recent []Event
	head   int
	count  int

	subscribers map[uint64]chan Event
	nextSub     uint64
}

// NewHub returns a hub retaining up to capacity events for replay.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Hub{
		now:         func() time.Time { return time.Now().UTC() },
		recent:      make([]Event, capacity),
		subscribers: make(map[uint64]chan Event),
	}
}

// Publish records an event and delivers it to current subscribers. Payloads
// that fail to marshal are published as an empty object.
func (h *Hub) Publish(eventType string, data any) {
	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ev := Event{ID: h.seq.Add(1), Type: eventType, At: h.now(), Data: payload}
	h.appendLocked(ev)
	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel func closes the channel
// and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Event, subscriberBacklog)
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Since returns retained events newer than lastID, oldest first. Zero
// returns everything retained.
func (h *Hub) Since(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.count)
	for i := 0; i < h.count; i++ {
		ev := h.recent[(h.head+i)%len(h.recent)]
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) appendLocked(ev Event) {
	if h.count < len(h.recent) {
		h.recent[(h.head+h.count)%len(h.recent)] = ev
		h.count++
		return
	}
	h.recent[h.head] = ev
	h.head = (h.head + 1) % len(h.recent)
}
