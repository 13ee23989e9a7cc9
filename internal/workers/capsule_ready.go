package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/clock"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/capsule"
)

const readyBatchSize = 100

type CapsuleSource interface {
	ListReadyToNotify(ctx context.Context, now time.Time, limit int) ([]capsule.Capsule, error)
	ListActiveMemberIDs(ctx context.Context, capsuleID uuid.UUID) ([]uuid.UUID, error)
	MarkReadyNotified(ctx context.Context, capsuleID uuid.UUID, at time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, ev notification.Event) error
}

// CapsuleReadyNotifier tells members once that a locked capsule has reached
// its unlock time. It never unlocks anything itself.
type CapsuleReadyNotifier struct {
	capsules CapsuleSource
	notifier Notifier
	clock    clock.Clock
}

func NewCapsuleReadyNotifier(capsules CapsuleSource, notifier Notifier, clk clock.Clock) *CapsuleReadyNotifier {
	return &CapsuleReadyNotifier{capsules: capsules, notifier: notifier, clock: clk}
}

func (w *CapsuleReadyNotifier) Start(ctx context.Context, interval time.Duration) {
	Every(ctx, "capsule-ready", interval, time.Minute, func(ctx context.Context) error {
		_, err := w.RunOnce(ctx)
		return err
	})
}

// RunOnce handles one batch and returns how many capsules were stamped.
// Members are notified one by one. A capsule is stamped once any member was
// reached; if every member failed it stays unstamped and is retried on the
// next run.
func (w *CapsuleReadyNotifier) RunOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()

	ready, err := w.capsules.ListReadyToNotify(ctx, now, readyBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list ready capsules: %w", err)
	}

	stamped := 0
	for _, c := range ready {
		members, err := w.capsules.ListActiveMemberIDs(ctx, c.ID)
		if err != nil {
			log.Printf("CapsuleReady: Failed to list members of %s: %v", c.ID, err)
			continue
		}

		if reached := w.notifyMembers(ctx, c, members); reached == 0 && len(members) > 0 {
			continue
		}

		if err := w.capsules.MarkReadyNotified(ctx, c.ID, now); err != nil {
			log.Printf("CapsuleReady: Failed to stamp %s: %v", c.ID, err)
			continue
		}
		stamped++
	}

	if stamped > 0 {
		log.Printf("CapsuleReady: notified %d capsule(s)", stamped)
	}
	return stamped, nil
}

// notifyMembers returns how many members were notified.
func (w *CapsuleReadyNotifier) notifyMembers(ctx context.Context, c capsule.Capsule, members []uuid.UUID) int {
	reached := 0
	for _, member := range members {
		err := w.notifier.Notify(ctx, notification.Event{
			Type:       notification.TypeCapsuleReady,
			Recipients: []uuid.UUID{member},
			Data: map[string]any{
				"capsule_id":    c.ID.String(),
				"capsule_title": c.Title,
			},
		})
		if err != nil {
			log.Printf("CapsuleReady: Failed to notify %s of %s: %v", member, c.ID, err)
			continue
		}
		reached++
	}
	return reached
}
