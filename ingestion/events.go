package ingestion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of an Event.
type EventType string

const (
	// EventStatusChanged is published after every index mutation.
	EventStatusChanged EventType = "status_changed"

	// EventProgress is published during a full rebuild.
	EventProgress EventType = "progress"

	// EventIndexFailed is published when background indexing fails.
	EventIndexFailed EventType = "index_failed"
)

// Event is a notification for the host UI.
type Event struct {
	ID      string
	Type    EventType
	DocID   string
	BlockID string
	Phase   string
	Current int
	Total   int
	Error   string
	Time    time.Time
}

// Broadcaster fans events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
	logger *slog.Logger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe returns a channel receiving future events and a function that
// ends the subscription and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers e to every subscriber. ID and Time are filled in.
func (b *Broadcaster) Publish(e Event) {
	e.ID = uuid.NewString()
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("dropping event for slow subscriber", "type", e.Type)
		}
	}
}

// Close ends every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
