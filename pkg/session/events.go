package session

import (
	"sync"
	"time"

	"forumscraper/pkg/progress"
)

// EventType identifies what happened to a session
type EventType string

// Event types emitted by the manager. Events are observability only; the
// persisted session record is the authoritative state.
const (
	EventStatusChanged  EventType = "status_changed"
	EventBatchCommitted EventType = "batch_committed"
	EventMilestone      EventType = "milestone"
	EventRetry          EventType = "retry"
)

// Event describes one observable session occurrence
type Event struct {
	Type      EventType
	SessionID string
	Status    Status
	// Items is the cumulative scraped count at the time of the event
	Items int64
	// Milestone is set for EventMilestone events
	Milestone progress.Milestone
	// Attempt is set for EventRetry events
	Attempt int
	// Err carries the triggering error message, when any
	Err string
	At  time.Time
}

// Listener receives session events. Listeners run synchronously on the
// session's goroutine and must return quickly.
type Listener func(Event)

type eventBus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (b *eventBus) subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}
