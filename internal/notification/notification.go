package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeFriendRequest  NotificationType = "friend_request"
	TypeFriendAccepted NotificationType = "friend_accepted"
	TypeDiaryEntry     NotificationType = "diary_entry"
	TypeCapsuleInvite  NotificationType = "capsule_invite"
	TypeCapsuleReady   NotificationType = "capsule_ready"
	TypeCapsuleOpened  NotificationType = "capsule_opened"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
	StatusRead    NotificationStatus = "read"
)

type Notification struct {
	ID            uuid.UUID            `json:"id"`
	UserID        uuid.UUID            `json:"user_id"`
	Type          NotificationType     `json:"type"`
	Priority      NotificationPriority `json:"priority"`
	Status        NotificationStatus   `json:"status"`
	Title         string               `json:"title"`
	Body          string               `json:"body"`
	Data          map[string]any       `json:"data,omitempty"`
	ActorID       *uuid.UUID           `json:"actor_id,omitempty"`
	ScheduledFor  *time.Time           `json:"scheduled_for,omitempty"`
	SentAt        *time.Time           `json:"sent_at,omitempty"`
	ReadAt        *time.Time           `json:"read_at,omitempty"`
	FailedAt      *time.Time           `json:"failed_at,omitempty"`
	FailureReason *string              `json:"failure_reason,omitempty"`
	RetryCount    int                  `json:"retry_count"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}

type DeviceToken struct {
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
	AddedAt  time.Time `json:"added_at"`
	LastUsed time.Time `json:"last_used"`
}

type NotificationPreferences struct {
	UserID       uuid.UUID       `json:"user_id"`
	PushEnabled  bool            `json:"push_enabled"`
	InAppEnabled bool            `json:"in_app_enabled"`
	EnabledTypes map[string]bool `json:"enabled_types"`
	DeviceTokens []DeviceToken   `json:"device_tokens"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Allows reports whether t is switched on. Types missing from the map are on.
func (p *NotificationPreferences) Allows(t NotificationType) bool {
	enabled, ok := p.EnabledTypes[string(t)]
	return !ok || enabled
}

func DefaultPreferences(userID uuid.UUID, now time.Time) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:       userID,
		PushEnabled:  true,
		InAppEnabled: true,
		EnabledTypes: map[string]bool{},
		DeviceTokens: []DeviceToken{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
