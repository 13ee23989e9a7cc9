package capsule

import (
	"time"

	"github.com/google/uuid"
)

type CreateCapsuleRequest struct {
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	CapsuleType CapsuleType `json:"capsule_type"`
	UnlockAt    time.Time   `json:"unlock_at"`
	MemberIDs   []uuid.UUID `json:"member_ids,omitempty"`
}

type RecordContentRequest struct {
	TextContent *string `json:"text_content,omitempty"`
	MediaURL    *string `json:"media_url,omitempty"`
}

type PinRequest struct {
	Pinned bool `json:"pinned"`
}

// View is what list and detail endpoints return for a capsule.
type View struct {
	Capsule
	Role       MemberRole `json:"role"`
	IsPinned   bool       `json:"is_pinned"`
	HasContent bool       `json:"has_content"`
	Countdown  Countdown  `json:"countdown"`
}
