// Package eventbus is an in-memory publish/subscribe bus. The orchestrator
// publishes one event per provider invocation; the usage recorder consumes them.
//
//   - Buffered channel per subscriber (buffer=100).
//   - Publish never blocks: an event is dropped when a subscriber's buffer is
//     full, and the drop is counted.
//   - Close ends every subscription by closing its channel.
//   - No persistence.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/matiasleandrokruk/codeassist/pkg/uuid"
)

// Event is a single published message.
type Event struct {
	ID          string
	Topic       string
	PublishedAt time.Time
	Payload     any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const defaultBufferSize = 100

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	closed      bool
	dropped     atomic.Int64
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe registers a new subscriber for topic and returns a read-only channel.
// Subscribing to a closed bus returns an already-closed channel.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, defaultBufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish sends an Event to all subscribers of topic.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		PublishedAt: time.Now().UTC(),
		Payload:     payload,
	}

	// Held for the whole fan-out so Close cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}
