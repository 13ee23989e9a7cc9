package notification

import (
	"fmt"
	"strings"
	"time"
)

// Template is the push wording for a notification type. Placeholders are
// written {{key}} and filled from the event data.
type Template struct {
	Title           string
	Body            string
	DefaultPriority NotificationPriority
	TTL             time.Duration
}

var templates = map[NotificationType]Template{
	TypeFriendRequest: {
		Title:           "New friend request",
		Body:            "{{actor_username}} wants to be friends",
		DefaultPriority: PriorityNormal,
		TTL:             14 * 24 * time.Hour,
	},
	TypeFriendAccepted: {
		Title:           "Friend request accepted",
		Body:            "{{actor_username}} accepted your request",
		DefaultPriority: PriorityNormal,
		TTL:             7 * 24 * time.Hour,
	},
	TypeDiaryEntry: {
		Title:           "{{diary_title}}",
		Body:            "{{actor_username}} wrote today's page",
		DefaultPriority: PriorityNormal,
		TTL:             2 * 24 * time.Hour,
	},
	TypeCapsuleInvite: {
		Title:           "You were added to a time capsule",
		Body:            "Leave something in \"{{capsule_title}}\" before it locks away",
		DefaultPriority: PriorityNormal,
		TTL:             30 * 24 * time.Hour,
	},
	TypeCapsuleReady: {
		Title:           "A time capsule is ready",
		Body:            "\"{{capsule_title}}\" can be opened now",
		DefaultPriority: PriorityHigh,
		TTL:             30 * 24 * time.Hour,
	},
	TypeCapsuleOpened: {
		Title:           "A time capsule was opened",
		Body:            "{{actor_username}} opened \"{{capsule_title}}\"",
		DefaultPriority: PriorityNormal,
		TTL:             30 * 24 * time.Hour,
	},
}

func TemplateFor(t NotificationType) (Template, bool) {
	tpl, ok := templates[t]
	return tpl, ok
}

func Render(template string, data map[string]any) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{%s}}", key)
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
	}
	return result
}
