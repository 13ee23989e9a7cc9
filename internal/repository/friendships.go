package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/types/friendship"
)

type FriendshipRepository struct {
	db DB
}

func NewFriendshipRepository(db DB) *FriendshipRepository {
	return &FriendshipRepository{db: db}
}

const friendshipColumns = `id, requester_id, addressee_id, status, created_at, updated_at`

func scanFriendship(row interface{ Scan(...any) error }) (*friendship.Friendship, error) {
	f := &friendship.Friendship{}
	err := row.Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// optional returns nil, nil for pgx.ErrNoRows.
func optional(f *friendship.Friendship, err error, op string) (*friendship.Friendship, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	return f, nil
}

func (r *FriendshipRepository) FindBetween(ctx context.Context, a, b uuid.UUID) (*friendship.Friendship, error) {
	f, err := scanFriendship(r.db.QueryRow(ctx, `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE (requester_id = $1 AND addressee_id = $2) OR (requester_id = $2 AND addressee_id = $1)
		LIMIT 1`, a, b))
	return optional(f, err, "find friendship")
}

func (r *FriendshipRepository) Insert(ctx context.Context, f *friendship.Friendship) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO friendships (id, requester_id, addressee_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.RequesterID, f.AddresseeID, f.Status, f.CreatedAt, f.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("a friend request between you already exists")
	}
	return wrap("insert friendship", err)
}

func (r *FriendshipRepository) Get(ctx context.Context, id uuid.UUID) (*friendship.Friendship, error) {
	f, err := scanFriendship(r.db.QueryRow(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("get friendship", "friend request", err)
	}
	return f, nil
}

func (r *FriendshipRepository) Transition(ctx context.Context, id, addresseeID uuid.UUID, from, to friendship.FriendshipStatus, at time.Time) (*friendship.Friendship, error) {
	f, err := scanFriendship(r.db.QueryRow(ctx, `
		UPDATE friendships SET status = $4, updated_at = $5
		WHERE id = $1 AND addressee_id = $2 AND status = $3
		RETURNING `+friendshipColumns,
		id, addresseeID, from, to, at,
	))
	return optional(f, err, "update friendship")
}

func (r *FriendshipRepository) Reopen(ctx context.Context, id, requesterID, addresseeID uuid.UUID, at time.Time) (*friendship.Friendship, error) {
	f, err := scanFriendship(r.db.QueryRow(ctx, `
		UPDATE friendships SET requester_id = $2, addressee_id = $3, status = 'pending', created_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'rejected'
		RETURNING `+friendshipColumns,
		id, requesterID, addresseeID, at,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Conflict("friend request changed, try again")
	}
	if err != nil {
		return nil, wrap("reopen friendship", err)
	}
	return f, nil
}

// ListAccepted returns the other party of every accepted row touching userID.
func (r *FriendshipRepository) ListAccepted(ctx context.Context, userID uuid.UUID) ([]friendship.Friend, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.id, u.id, u.username, u.first_name, u.last_name, u.image_url, f.updated_at
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.requester_id = $1 THEN f.addressee_id ELSE f.requester_id END
		WHERE f.status = 'accepted' AND (f.requester_id = $1 OR f.addressee_id = $1)
		ORDER BY u.username ASC`, userID)
	if err != nil {
		return nil, wrap("list friends", err)
	}
	defer rows.Close()

	out := []friendship.Friend{}
	for rows.Next() {
		var f friendship.Friend
		if err := rows.Scan(&f.FriendshipID, &f.UserID, &f.Username, &f.FirstName, &f.LastName, &f.ImageURL, &f.Since); err != nil {
			return nil, wrap("scan friend", err)
		}
		out = append(out, f)
	}
	return out, wrap("list friends", rows.Err())
}

func (r *FriendshipRepository) ListPendingIncoming(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT f.id, f.requester_id, u.username, u.image_url, f.status, f.created_at
		FROM friendships f
		JOIN users u ON u.id = f.requester_id
		WHERE f.addressee_id = $1 AND f.status = 'pending'
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, wrap("list friend requests", err)
	}
	defer rows.Close()

	out := []friendship.FriendRequest{}
	for rows.Next() {
		var fr friendship.FriendRequest
		if err := rows.Scan(&fr.ID, &fr.RequesterID, &fr.RequesterUsername, &fr.RequesterImageURL, &fr.Status, &fr.CreatedAt); err != nil {
			return nil, wrap("scan friend request", err)
		}
		out = append(out, fr)
	}
	return out, wrap("list friend requests", rows.Err())
}

func (r *FriendshipRepository) DeleteAccepted(ctx context.Context, a, b uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM friendships
		WHERE status = 'accepted'
		  AND ((requester_id = $1 AND addressee_id = $2) OR (requester_id = $2 AND addressee_id = $1))`,
		a, b,
	)
	if err != nil {
		return false, wrap("delete friendship", err)
	}
	return tag.RowsAffected() > 0, nil
}
