package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Filter selects the changes a channel receives. A zero DiaryID matches
// every diary.
type Filter struct {
	DiaryID uuid.UUID
}

func (f Filter) matches(c Change) bool {
	return f.DiaryID == uuid.Nil || f.DiaryID == c.DiaryID
}

// Handlers are called synchronously from Publish and must not block.
// Nil handlers are skipped.
type Handlers struct {
	OnInsert func(Change)
	OnUpdate func(Change)
	OnDelete func(Change)
}

func (h Handlers) pick(op Op) func(Change) {
	switch op {
	case OpInsert:
		return h.OnInsert
	case OpUpdate:
		return h.OnUpdate
	case OpDelete:
		return h.OnDelete
	}
	return nil
}

type Channel struct {
	id       int64
	hub      *Hub
	filter   Filter
	handlers Handlers
	once     sync.Once
}

// Close detaches the channel. Safe to call more than once.
func (c *Channel) Close() {
	c.once.Do(func() { c.hub.remove(c.id) })
}

type Hub struct {
	mu       sync.RWMutex
	nextID   int64
	channels map[int64]*Channel
}

func NewHub() *Hub {
	return &Hub{channels: make(map[int64]*Channel)}
}

func (h *Hub) Open(filter Filter, handlers Handlers) *Channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := &Channel{id: h.nextID, hub: h, filter: filter, handlers: handlers}
	h.channels[ch.id] = ch
	return ch
}

func (h *Hub) remove(id int64) {
	h.mu.Lock()
	delete(h.channels, id)
	h.mu.Unlock()
}

// Publish fans change out to every open channel whose filter matches.
func (h *Hub) Publish(change Change) {
	h.mu.RLock()
	targets := make([]*Channel, 0, len(h.channels))
	for _, ch := range h.channels {
		if ch.filter.matches(change) {
			targets = append(targets, ch)
		}
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		fn := ch.handlers.pick(change.Op)
		if fn == nil {
			continue
		}
		deliver(fn, change)
	}
}

func deliver(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Realtime: handler for %s %s panicked: %v", c.Op, c.Entry.ID, r)
		}
	}()
	fn(c)
}

// Open channels, for health output and tests.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}
