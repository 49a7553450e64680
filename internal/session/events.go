package session

import (
	"sync"
	"time"
)

// EventType names what changed in a session.
type EventType string

const (
	EventSource     EventType = "source"
	EventGeneration EventType = "generation"
	EventNarration  EventType = "narration"
	EventChat       EventType = "chat"
	EventReset      EventType = "reset"
)

// Event is published after a session mutation.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Epoch     uint64    `json:"epoch"`
	Time      time.Time `json:"time"`
	Data      any       `json:"data,omitempty"`
}

const subscriberBuffer = 32

type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// publish never blocks; a full subscriber misses the event.
func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
