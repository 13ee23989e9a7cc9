package activity

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the display classification of an activity item. The client owns
// the wording; this layer only sends the key and parameters.
type Kind string

const (
	KindCapsuleUnlockable Kind = "capsule_unlockable"
	KindDiaryPostable     Kind = "diary_postable"
	KindCapsulePending    Kind = "capsule_pending"
	KindDiaryMemory       Kind = "diary_memory"
	KindFriendRequest     Kind = "friend_request"
)

// SectionOrder is the fixed order sections appear in a feed.
var SectionOrder = []Kind{
	KindCapsuleUnlockable,
	KindDiaryPostable,
	KindCapsulePending,
	KindDiaryMemory,
	KindFriendRequest,
}

type Item struct {
	Kind     Kind           `json:"kind"`
	TargetID uuid.UUID      `json:"target_id"`
	Params   map[string]any `json:"params"`
}

type Section struct {
	Kind  Kind   `json:"kind"`
	Items []Item `json:"items"`
	// Total is the item count before truncation.
	Total int `json:"total"`
}

type Feed struct {
	UserID      uuid.UUID `json:"user_id"`
	Sections    []Section `json:"sections"`
	GeneratedAt time.Time `json:"generated_at"`
}
