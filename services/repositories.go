package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/capsule"
	"timinkAPI/internal/types/diary"
	"timinkAPI/internal/types/friendship"
	"timinkAPI/internal/types/user"
)

// The interfaces below are the storage contracts the services consume. The
// pgx implementations live in internal/repository.

type UserRepository interface {
	Upsert(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error)
	DeleteByClerkID(ctx context.Context, clerkID string) error
}

type CapsuleRepository interface {
	// CreateWithOwner inserts the capsule and its owner membership atomically.
	CreateWithOwner(ctx context.Context, c *capsule.Capsule) error
	AddMember(ctx context.Context, capsuleID, userID uuid.UUID) error
	// GetMembership returns NotFound when the capsule is missing or deleted
	// and AccessDenied when userID holds no active membership.
	GetMembership(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.Membership, error)
	// ListMemberships returns the user's active memberships on capsules that
	// are not deleted, ordered by unlock_at ascending.
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]capsule.Membership, error)
	// Unlock flips a locked, due capsule to unlocked and returns the new row.
	// It returns NotUnlockable when no row matched.
	Unlock(ctx context.Context, capsuleID uuid.UUID, now time.Time) (*capsule.Capsule, error)
	// GetContent returns nil, nil when the author has not posted.
	GetContent(ctx context.Context, capsuleID, authorID uuid.UUID) (*capsule.Content, error)
	// InsertContent returns EditLimitReached on a (capsule, author) collision.
	InsertContent(ctx context.Context, content *capsule.Content) error
	ListContents(ctx context.Context, capsuleID uuid.UUID) ([]capsule.Content, error)
	ListActiveMemberIDs(ctx context.Context, capsuleID uuid.UUID) ([]uuid.UUID, error)
	// SoftDelete reports whether a row owned by ownerID was marked deleted.
	SoftDelete(ctx context.Context, capsuleID, ownerID uuid.UUID) (bool, error)
	SetPinned(ctx context.Context, capsuleID, userID uuid.UUID, pinned bool) error
	ListReadyToNotify(ctx context.Context, now time.Time, limit int) ([]capsule.Capsule, error)
	MarkReadyNotified(ctx context.Context, capsuleID uuid.UUID, at time.Time) error
}

type DiaryRepository interface {
	CreateWithMembers(ctx context.Context, d *diary.Diary, memberIDs []uuid.UUID) error
	// Get returns NotFound when the diary is missing and AccessDenied when
	// userID is not a member.
	Get(ctx context.Context, diaryID, userID uuid.UUID) (*diary.Diary, error)
	ListForMember(ctx context.Context, userID uuid.UUID) ([]diary.Diary, error)
	ListMemberIDs(ctx context.Context, diaryID uuid.UUID) ([]uuid.UUID, error)
	// LatestEntryByAuthor returns nil, nil when the author never posted.
	LatestEntryByAuthor(ctx context.Context, diaryID, authorID uuid.UUID) (*diary.Entry, error)
	// InsertEntry returns EditLimitReached on a (diary, author, posted_date)
	// collision.
	InsertEntry(ctx context.Context, e *diary.Entry) error
	TouchUpdatedAt(ctx context.Context, diaryID uuid.UUID, at time.Time) error
	ListEntries(ctx context.Context, diaryID uuid.UUID, limit int) ([]diary.Entry, error)
	// ListEntriesPostedOn returns entries dated day in diaries userID belongs to.
	ListEntriesPostedOn(ctx context.Context, userID uuid.UUID, day time.Time) ([]diary.Entry, error)
	SetPinned(ctx context.Context, diaryID, userID uuid.UUID, pinned bool) error
}

type FriendshipRepository interface {
	// FindBetween returns the row for the unordered pair {a, b}, or nil, nil.
	FindBetween(ctx context.Context, a, b uuid.UUID) (*friendship.Friendship, error)
	// Insert returns Conflict when a row for the pair already exists.
	Insert(ctx context.Context, f *friendship.Friendship) error
	Get(ctx context.Context, id uuid.UUID) (*friendship.Friendship, error)
	// Transition moves row id from one status to another only when the
	// addressee matches; it returns nil, nil when nothing matched.
	Transition(ctx context.Context, id, addresseeID uuid.UUID, from, to friendship.FriendshipStatus, at time.Time) (*friendship.Friendship, error)
	// Reopen turns a rejected row into a fresh pending request from requesterID.
	Reopen(ctx context.Context, id, requesterID, addresseeID uuid.UUID, at time.Time) (*friendship.Friendship, error)
	ListAccepted(ctx context.Context, userID uuid.UUID) ([]friendship.Friend, error)
	ListPendingIncoming(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error)
	DeleteAccepted(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type NotificationRepository interface {
	Insert(ctx context.Context, n *notification.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]*notification.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	CountAll(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkFailed records the failure and returns the new retry count.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int, error)
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*notification.Notification, error)
	DeleteExpired(ctx context.Context, now time.Time, readBefore time.Time) (int64, error)

	// GetPreferences returns nil, nil when the user has none stored.
	GetPreferences(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *notification.NotificationPreferences) error
}

// ObjectStore is the binary storage for images. Keys are caller-chosen
// paths; URLs are stable and public.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Notifier fans an event out to its recipients. Callers treat it as best
// effort.
type Notifier interface {
	Notify(ctx context.Context, ev notification.Event) error
}
