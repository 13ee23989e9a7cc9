// Package realtime carries diary entry changes from Postgres to connected
// clients. Delivery is at-least-once and unordered; consumers merge changes
// into their local view with EntryList.Apply.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/types/diary"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Change struct {
	Op      Op          `json:"op"`
	DiaryID uuid.UUID   `json:"diary_id"`
	Entry   diary.Entry `json:"entry"`
}

// wireEntry mirrors the trigger's entry object. It carries keys only, so
// Content is normally empty until PGListener loads the row. posted_date is
// a plain DATE and arrives as "YYYY-MM-DD".
type wireEntry struct {
	ID         uuid.UUID `json:"id"`
	DiaryID    uuid.UUID `json:"diary_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	Content    string    `json:"content"`
	PostedDate string    `json:"posted_date"`
	CreatedAt  time.Time `json:"created_at"`
}

type wireChange struct {
	Op      Op        `json:"op"`
	DiaryID uuid.UUID `json:"diary_id"`
	Entry   wireEntry `json:"entry"`
}

// DecodeChange parses a diary_entry_changes notification payload.
func DecodeChange(payload []byte) (Change, error) {
	var w wireChange
	if err := json.Unmarshal(payload, &w); err != nil {
		return Change{}, fmt.Errorf("failed to decode change: %w", err)
	}

	switch w.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return Change{}, fmt.Errorf("unknown change op %q", w.Op)
	}
	if w.Entry.ID == uuid.Nil {
		return Change{}, fmt.Errorf("change without entry id")
	}

	var posted time.Time
	if w.Entry.PostedDate != "" {
		d, err := time.Parse(time.DateOnly, w.Entry.PostedDate)
		if err != nil {
			return Change{}, fmt.Errorf("invalid posted_date %q: %w", w.Entry.PostedDate, err)
		}
		posted = d
	}

	diaryID := w.DiaryID
	if diaryID == uuid.Nil {
		diaryID = w.Entry.DiaryID
	}

	return Change{
		Op:      w.Op,
		DiaryID: diaryID,
		Entry: diary.Entry{
			ID:         w.Entry.ID,
			DiaryID:    diaryID,
			AuthorID:   w.Entry.AuthorID,
			Content:    w.Entry.Content,
			PostedDate: posted,
			CreatedAt:  w.Entry.CreatedAt,
		},
	}, nil
}
