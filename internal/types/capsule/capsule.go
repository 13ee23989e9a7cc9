package capsule

import (
	"time"

	"github.com/google/uuid"
)

type CapsuleType string

const (
	TypePersonal    CapsuleType = "personal"
	TypeWithFriends CapsuleType = "with_friends"
)

func (t CapsuleType) Valid() bool {
	return t == TypePersonal || t == TypeWithFriends
}

type Status string

const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
	StatusDeleted  Status = "deleted"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberLeft    MemberStatus = "left"
	MemberRemoved MemberStatus = "removed"
)

type Capsule struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Description *string     `json:"description,omitempty" db:"description"`
	OwnerID     uuid.UUID   `json:"owner_id" db:"owner_id"`
	CapsuleType CapsuleType `json:"capsule_type" db:"capsule_type"`
	Status      Status      `json:"status" db:"status"`
	UnlockAt    time.Time   `json:"unlock_at" db:"unlock_at"`
	UnlockedAt  *time.Time  `json:"unlocked_at,omitempty" db:"unlocked_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

type Member struct {
	CapsuleID uuid.UUID    `json:"capsule_id" db:"capsule_id"`
	UserID    uuid.UUID    `json:"user_id" db:"user_id"`
	Role      MemberRole   `json:"role" db:"role"`
	Status    MemberStatus `json:"status" db:"status"`
	IsPinned  bool         `json:"is_pinned" db:"is_pinned"`
	JoinedAt  time.Time    `json:"joined_at" db:"joined_at"`
}

// Membership is one member's view of one capsule: the capsule row, the
// member row, and whether that member already submitted content.
type Membership struct {
	Capsule    Capsule `json:"capsule"`
	Member     Member  `json:"member"`
	HasContent bool    `json:"has_content"`
}

type Content struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CapsuleID   uuid.UUID `json:"capsule_id" db:"capsule_id"`
	AuthorID    uuid.UUID `json:"author_id" db:"author_id"`
	TextContent *string   `json:"text_content,omitempty" db:"text_content"`
	MediaURL    *string   `json:"media_url,omitempty" db:"media_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	AuthorUsername string `json:"author_username,omitempty"`
	AuthorImageURL string `json:"author_image_url,omitempty"`
}

// Countdown is the time left until a capsule may be unlocked, floored to
// whole minutes.
type Countdown struct {
	Days         int  `json:"days"`
	Hours        int  `json:"hours"`
	Minutes      int  `json:"minutes"`
	IsUnlockable bool `json:"is_unlockable"`
}
