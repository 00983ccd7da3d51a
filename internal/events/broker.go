// Package events fans out post-commit notifications to subscriber channels.
//
// Topics are either a specific account's private channel ("user:<id>") or
// the shared admin channel. Delivery is fire-and-forget and at-most-once:
// the originating transaction has already committed when Publish runs, so a
// failed or dropped delivery is logged and counted, never propagated back to
// the caller. Events are notifications, not the source of truth.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amoria-app/backend/internal/observability"
)

// Event types carried on the bus.
const (
	TypeEntryCreated = "entry-created"
	TypeChatCreated  = "chat-created"
)

// TopicAdmin is the global channel every admin console listens on.
const TopicAdmin = "admin"

// TopicUser returns the private channel name for an account.
func TopicUser(accountID string) string { return "user:" + accountID }

// Event is a single bus notification. LocalEntryID carries the
// caller-supplied idempotency token unchanged so a client can de-duplicate
// its optimistic local echo against the server-confirmed record.
type Event struct {
	Type         string    `json:"type"`
	ChatID       string    `json:"chat_id,omitempty"`
	EntryID      string    `json:"entry_id,omitempty"`
	SenderID     string    `json:"sender_id,omitempty"`
	LocalEntryID string    `json:"local_entry_id,omitempty"`
	Payload      any       `json:"payload,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Publisher is the narrow contract the orchestrators depend on.
// Implementations must never block the caller indefinitely and must not
// return delivery failures as errors.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event)
}

// Broker is an in-process Publisher with per-topic subscriber channels.
// Each subscriber owns a buffered channel; a full buffer drops the event for
// that subscriber rather than blocking the publishing request.
//
// Safe for concurrent use.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	buffer int
}

// NewBroker constructs a Broker whose subscriber channels buffer up to
// buffer events each. Values <= 0 are coerced to 16.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		subs:   make(map[string]map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber on topic and returns its channel
// along with a cancel function that unsubscribes and closes the channel.
func (b *Broker) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if m, ok := b.subs[topic]; ok {
			if _, ok := m[id]; ok {
				delete(m, id)
				close(ch)
			}
			if len(m) == 0 {
				delete(b.subs, topic)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of topic without blocking. Full
// subscriber buffers drop the event; drops are counted and logged at debug
// level only, since the committed state is already durable.
//
// The read lock is held across the sends: cancel closes a subscriber
// channel only under the write lock, so no send can hit a closed channel.
// The sends never block, so holding the lock here is cheap.
func (b *Broker) Publish(ctx context.Context, topic string, ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			observability.EventsDropped.WithLabelValues(ev.Type).Inc()
			log.Debug().
				Str("topic", topic).
				Str("event_type", ev.Type).
				Msg("event dropped: subscriber buffer full")
		}
	}
}

// SubscriberCount reports how many subscribers a topic currently has.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
