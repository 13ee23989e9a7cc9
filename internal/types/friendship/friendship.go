package friendship

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship is a single directed row; once accepted it counts for both
// parties.
type Friendship struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	RequesterID uuid.UUID        `json:"requester_id" db:"requester_id"`
	AddresseeID uuid.UUID        `json:"addressee_id" db:"addressee_id"`
	Status      FriendshipStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// Other returns the party of f that is not userID.
func (f *Friendship) Other(userID uuid.UUID) uuid.UUID {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

func (f *Friendship) Involves(userID uuid.UUID) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

type Friend struct {
	FriendshipID uuid.UUID `json:"friendship_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	ImageURL     string    `json:"image_url,omitempty"`
	Since        time.Time `json:"since"`
}

type FriendRequest struct {
	ID                uuid.UUID        `json:"id"`
	RequesterID       uuid.UUID        `json:"requester_id"`
	RequesterUsername string           `json:"requester_username"`
	RequesterImageURL string           `json:"requester_image_url,omitempty"`
	Status            FriendshipStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
}

// SearchResult is a user found by exact id, annotated with the relation to
// the searcher.
type SearchResult struct {
	UserID        uuid.UUID         `json:"user_id"`
	Username      string            `json:"username"`
	ImageURL      string            `json:"image_url,omitempty"`
	IsFriend      bool              `json:"is_friend"`
	RequestStatus *FriendshipStatus `json:"request_status,omitempty"`
	RequestSentBy *uuid.UUID        `json:"request_sent_by,omitempty"`
}

type SendRequest struct {
	AddresseeID uuid.UUID `json:"addressee_id"`
}

type FriendCode struct {
	UserID       uuid.UUID `json:"user_id"`
	Deeplink     string    `json:"deeplink"`
	QrCodeBase64 string    `json:"qr_code_base64"`
}
