// Package eventbus is the in-process publish/subscribe channel the app shell
// uses to tell already-running components that data they cached is stale
// (a friend request was accepted, a capsule unlocked, a diary got a post).
//
// A Bus is created by main and closed on shutdown; nothing here is global.
package eventbus

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const (
	TopicFriendsChanged       = "friends.changed"
	TopicCapsulesChanged      = "capsules.changed"
	TopicDiariesChanged       = "diaries.changed"
	TopicNotificationsChanged = "notifications.changed"
)

// Event names the users whose views are affected and an optional subject id.
type Event struct {
	Topic     string
	UserIDs   []uuid.UUID
	SubjectID uuid.UUID
}

type Handler func(Event)

type subscription struct {
	id int64
	fn Handler
}

type Bus struct {
	mu     sync.RWMutex
	nextID int64
	topics map[string][]subscription
	closed bool
}

func New() *Bus {
	return &Bus{topics: make(map[string][]subscription)}
}

// Subscribe registers fn for topic and returns a disposer. Calling the
// disposer more than once is harmless.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(topic, id) })
	}
}

func (b *Bus) unsubscribe(topic string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == id {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers ev synchronously to every handler subscribed to ev.Topic.
// A panicking handler is logged and does not stop delivery to the rest.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscription, len(b.topics[ev.Topic]))
	copy(subs, b.topics[ev.Topic])
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s.fn, ev)
	}
}

func deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("EventBus: handler for %s panicked: %v", ev.Topic, r)
		}
	}()
	fn(ev)
}

// Subscribers reports how many handlers are registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close drops every subscription. Publish and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.topics = make(map[string][]subscription)
}
