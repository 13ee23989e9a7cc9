package diary

import (
	"time"

	"github.com/google/uuid"
)

type DiaryType string

const (
	TypePersonal    DiaryType = "personal"
	TypeWithFriends DiaryType = "with_friends"
)

func (t DiaryType) Valid() bool {
	return t == TypePersonal || t == TypeWithFriends
}

type Diary struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	DiaryType DiaryType `json:"diary_type" db:"diary_type"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Per viewing member.
	IsPinned      bool       `json:"is_pinned"`
	LastEntryByMe *time.Time `json:"last_entry_by_me,omitempty"`
}

type Entry struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DiaryID    uuid.UUID `json:"diary_id" db:"diary_id"`
	AuthorID   uuid.UUID `json:"author_id" db:"author_id"`
	Content    string    `json:"content" db:"content"`
	PostedDate time.Time `json:"posted_date" db:"posted_date"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	AuthorUsername string `json:"author_username,omitempty"`
	AuthorImageURL string `json:"author_image_url,omitempty"`
}

// Gate answers whether an author may post to a diary right now and, if not,
// from when.
type Gate struct {
	CanPostToday bool       `json:"can_post_today"`
	NextPostTime *time.Time `json:"next_post_time,omitempty"`
}
