package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/notification"
)

const notifyTimeout = 10 * time.Second

// runAsync is how services start fire-and-forget work. Tests swap it for a
// synchronous runner.
type runAsync func(func())

func goAsync(f func()) { go f() }

// notifyBestEffort hands ev to n on the async runner. Failures are logged and
// never reach the caller of the operation that triggered them.
func notifyBestEffort(run runAsync, n Notifier, ev notification.Event) {
	if n == nil || len(ev.Recipients) == 0 {
		return
	}
	run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, ev); err != nil {
			log.Printf("Notify: %s fan-out to %d users failed: %v", ev.Type, len(ev.Recipients), err)
		}
	})
}

func publish(bus *eventbus.Bus, topic string, subject uuid.UUID, users ...uuid.UUID) {
	if bus == nil {
		return
	}
	bus.Publish(eventbus.Event{Topic: topic, UserIDs: users, SubjectID: subject})
}

// without returns ids minus every occurrence of skip, deduplicated.
func without(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == skip || id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
