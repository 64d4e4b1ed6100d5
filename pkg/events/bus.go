// Package events is the in-process publish/subscribe bus the content services
// publish change notifications to.
package events

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	TopicStoriesChanged      = "stories.changed"
	TopicProjectsChanged     = "projects.changed"
	TopicUsersChanged        = "users.changed"
	TopicInteractionsChanged = "interactions.changed"
	TopicDonationCompleted   = "donations.completed"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// Event is a notification delivered to subscribers.
type Event struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Publisher is implemented by the bus; services depend on it rather than on *Bus.
type Publisher interface {
	Publish(topic string, payload interface{}) int
}

// Broker publishes and hands out subscriptions.
type Broker interface {
	Publisher
	Subscribe(topic string, buffer int) (<-chan Event, func())
}

// Bus fans events out to subscribers. Delivery never blocks: an event is
// dropped for a subscriber whose buffer is full.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers for topic (or TopicAll). The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(topic string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[topic][id]; ok {
				delete(b.subs[topic], id)
				close(sub)
			}
		})
	}
}

// Publish delivers to topic subscribers and TopicAll subscribers and returns
// how many received the event.
func (b *Bus) Publish(topic string, payload interface{}) int {
	ev := Event{Topic: topic, Payload: payload, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, set := range []map[int]chan Event{b.subs[topic], b.subs[TopicAll]} {
		for _, ch := range set {
			select {
			case ch <- ev:
				delivered++
			default:
				log.WithField("topic", topic).Debug("event dropped for slow subscriber")
			}
		}
	}
	return delivered
}

// Close unregisters every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, set := range b.subs {
		for id, ch := range set {
			close(ch)
			delete(set, id)
		}
		delete(b.subs, topic)
	}
}
