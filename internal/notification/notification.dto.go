package notification

import (
	"time"

	"github.com/google/uuid"
)

// Event is one thing worth telling a set of users about. The service renders
// it per recipient and hands pushes to the dispatcher.
type Event struct {
	Type         NotificationType     `json:"type"`
	Recipients   []uuid.UUID          `json:"recipients"`
	Priority     NotificationPriority `json:"priority,omitempty"`
	Data         map[string]any       `json:"data,omitempty"`
	ActorID      *uuid.UUID           `json:"actor_id,omitempty"`
	ScheduledFor *time.Time           `json:"scheduled_for,omitempty"`
}

type UpdatePreferencesRequest struct {
	PushEnabled  *bool          `json:"push_enabled,omitempty"`
	InAppEnabled *bool          `json:"in_app_enabled,omitempty"`
	EnabledTypes map[string]bool `json:"enabled_types,omitempty"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	TotalCount    int             `json:"total_count"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}
