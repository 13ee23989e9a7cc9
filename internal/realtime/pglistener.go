package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/types/diary"
)

// PGChannel is the NOTIFY channel the diary_entries trigger writes to.
const PGChannel = "diary_entry_changes"

type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// EntryLoader fetches the full row for a notification, which only carries
// entry keys.
type EntryLoader interface {
	GetEntry(ctx context.Context, entryID uuid.UUID) (*diary.Entry, error)
}

// PGListener holds one dedicated connection in LISTEN mode and republishes
// every decoded notification to the hub. On connection loss it redials with
// exponential backoff.
type PGListener struct {
	hub     *Hub
	entries EntryLoader
	dial    func(ctx context.Context) (listenConn, error)

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewPGListener(pool *pgxpool.Pool, hub *Hub, entries EntryLoader) *PGListener {
	return &PGListener{
		hub:     hub,
		entries: entries,
		dial: func(ctx context.Context) (listenConn, error) {
			pc, err := pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			// LISTEN state must not leak back into the pool.
			return pc.Hijack(), nil
		},
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

var _ listenConn = (*pgx.Conn)(nil)

// Run blocks until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		err := l.listen(ctx, func() { backoff = l.minBackoff })
		if ctx.Err() != nil {
			return
		}
		log.Printf("PGListener: connection lost, retrying in %s: %v", backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *PGListener) listen(ctx context.Context, connected func()) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+PGChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	connected()
	log.Printf("PGListener: listening on %s", PGChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Channel != PGChannel {
			continue
		}
		change, err := DecodeChange([]byte(n.Payload))
		if err != nil {
			log.Printf("PGListener: Skipping notification: %v", err)
			continue
		}
		change, ok := l.hydrate(ctx, change)
		if !ok {
			continue
		}
		l.hub.Publish(change)
	}
}

// hydrate loads content and author fields for inserts and updates. Deletes
// pass through with keys only. A row that is already gone is dropped, its
// delete notification follows.
func (l *PGListener) hydrate(ctx context.Context, change Change) (Change, bool) {
	if change.Op == OpDelete || l.entries == nil {
		return change, true
	}
	entry, err := l.entries.GetEntry(ctx, change.Entry.ID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Printf("PGListener: Failed to load entry %s: %v", change.Entry.ID, err)
		}
		return change, false
	}
	change.Entry = *entry
	return change, true
}
