package realtime

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"timinkAPI/internal/types/diary"
)

// EntryList is a local view of one diary's entries kept current by applying
// changes. Applying the same change twice leaves the list unchanged, and a
// delete for an unknown entry is ignored.
type EntryList struct {
	mu      sync.Mutex
	diaryID uuid.UUID
	byID    map[uuid.UUID]diary.Entry
}

func NewEntryList(diaryID uuid.UUID, initial []diary.Entry) *EntryList {
	l := &EntryList{diaryID: diaryID, byID: make(map[uuid.UUID]diary.Entry, len(initial))}
	for _, e := range initial {
		l.byID[e.ID] = e
	}
	return l
}

// Apply merges c and reports whether the view changed. Changes for other
// diaries are ignored.
func (l *EntryList) Apply(c Change) bool {
	if l.diaryID != uuid.Nil && c.DiaryID != l.diaryID {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch c.Op {
	case OpInsert, OpUpdate:
		prev, ok := l.byID[c.Entry.ID]
		next := c.Entry
		if ok {
			// Notifications do not carry joined author fields.
			if next.AuthorUsername == "" {
				next.AuthorUsername = prev.AuthorUsername
			}
			if next.AuthorImageURL == "" {
				next.AuthorImageURL = prev.AuthorImageURL
			}
			if sameEntry(prev, next) {
				return false
			}
		}
		l.byID[next.ID] = next
		return true
	case OpDelete:
		if _, ok := l.byID[c.Entry.ID]; !ok {
			return false
		}
		delete(l.byID, c.Entry.ID)
		return true
	}
	return false
}

// Entries returns the view newest first.
func (l *EntryList) Entries() []diary.Entry {
	l.mu.Lock()
	out := make([]diary.Entry, 0, len(l.byID))
	for _, e := range l.byID {
		out = append(out, e)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (l *EntryList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}

func sameEntry(a, b diary.Entry) bool {
	return a.ID == b.ID &&
		a.DiaryID == b.DiaryID &&
		a.AuthorID == b.AuthorID &&
		a.Content == b.Content &&
		a.PostedDate.Equal(b.PostedDate) &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		a.AuthorUsername == b.AuthorUsername &&
		a.AuthorImageURL == b.AuthorImageURL
}
