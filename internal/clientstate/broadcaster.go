package clientstate

import (
	"sync"
	"time"
)

// EventType distinguishes cart changes from other key changes.
type EventType string

const (
	EventCartUpdate EventType = "cartUpdate"
	EventStorage    EventType = "storage"
)

// Event notifies subscribers that a session value changed.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"-"`
	Key       Key       `json:"key"`
	At        time.Time `json:"at"`
}

// Broadcaster fans events out to in-process subscribers. Slow subscribers
// miss events rather than block publishers.
type Broadcaster struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan Event
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release it; it closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber without blocking.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
