package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/types/capsule"
)

type CapsuleRepository struct {
	db DB
}

func NewCapsuleRepository(db DB) *CapsuleRepository {
	return &CapsuleRepository{db: db}
}

const capsuleColumns = `c.id, c.title, c.description, c.owner_id, c.capsule_type, c.status, c.unlock_at, c.unlocked_at, c.created_at, c.updated_at`

func capsuleFields(c *capsule.Capsule) []any {
	return []any{&c.ID, &c.Title, &c.Description, &c.OwnerID, &c.CapsuleType, &c.Status, &c.UnlockAt, &c.UnlockedAt, &c.CreatedAt, &c.UpdatedAt}
}

func (r *CapsuleRepository) CreateWithOwner(ctx context.Context, c *capsule.Capsule) error {
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO capsules (id, title, description, owner_id, capsule_type, status, unlock_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.Title, c.Description, c.OwnerID, c.CapsuleType, c.Status, c.UnlockAt, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO capsule_members (capsule_id, user_id, role, status, joined_at)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.OwnerID, capsule.RoleOwner, capsule.MemberActive, c.CreatedAt,
		)
		return err
	})
	return wrap("create capsule", err)
}

func (r *CapsuleRepository) AddMember(ctx context.Context, capsuleID, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO capsule_members (capsule_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (capsule_id, user_id) DO UPDATE SET status = EXCLUDED.status`,
		capsuleID, userID, capsule.RoleMember, capsule.MemberActive,
	)
	return wrap("add capsule member", err)
}

const membershipQuery = `
	SELECT ` + capsuleColumns + `,
		m.capsule_id, m.user_id, m.role, m.status, m.is_pinned, m.joined_at,
		EXISTS (SELECT 1 FROM capsule_contents cc WHERE cc.capsule_id = c.id AND cc.author_id = m.user_id)
	FROM capsules c
	JOIN capsule_members m ON m.capsule_id = c.id`

func scanMembership(row interface{ Scan(...any) error }) (*capsule.Membership, error) {
	ms := &capsule.Membership{}
	fields := append(capsuleFields(&ms.Capsule),
		&ms.Member.CapsuleID, &ms.Member.UserID, &ms.Member.Role, &ms.Member.Status,
		&ms.Member.IsPinned, &ms.Member.JoinedAt, &ms.HasContent,
	)
	if err := row.Scan(fields...); err != nil {
		return nil, err
	}
	return ms, nil
}

func (r *CapsuleRepository) GetMembership(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.Membership, error) {
	ms, err := scanMembership(r.db.QueryRow(ctx,
		membershipQuery+` WHERE c.id = $1 AND m.user_id = $2 AND m.status = 'active' AND c.status <> 'deleted'`,
		capsuleID, userID,
	))
	if err == nil {
		return ms, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrap("get capsule membership", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM capsules WHERE id = $1 AND status <> 'deleted')`, capsuleID,
	).Scan(&exists); err != nil {
		return nil, wrap("get capsule membership", err)
	}
	if !exists {
		return nil, apperr.NotFound("capsule")
	}
	return nil, apperr.AccessDenied("you are not a member of this capsule")
}

func (r *CapsuleRepository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]capsule.Membership, error) {
	rows, err := r.db.Query(ctx,
		membershipQuery+` WHERE m.user_id = $1 AND m.status = 'active' AND c.status <> 'deleted' ORDER BY c.unlock_at ASC, c.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, wrap("list capsule memberships", err)
	}
	defer rows.Close()

	out := []capsule.Membership{}
	for rows.Next() {
		ms, err := scanMembership(rows)
		if err != nil {
			return nil, wrap("scan capsule membership", err)
		}
		out = append(out, *ms)
	}
	return out, wrap("list capsule memberships", rows.Err())
}

// Unlock is conditional on the row still being locked and due, so only one
// concurrent caller gets a row back.
func (r *CapsuleRepository) Unlock(ctx context.Context, capsuleID uuid.UUID, now time.Time) (*capsule.Capsule, error) {
	c := &capsule.Capsule{}
	err := r.db.QueryRow(ctx, `
		UPDATE capsules c SET status = 'unlocked', unlocked_at = $2, updated_at = $2
		WHERE c.id = $1 AND c.status = 'locked' AND c.unlock_at <= $2
		RETURNING `+capsuleColumns,
		capsuleID, now,
	).Scan(capsuleFields(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotUnlockable("capsule was already unlocked")
		}
		return nil, wrap("unlock capsule", err)
	}
	return c, nil
}

const contentQuery = `
	SELECT cc.id, cc.capsule_id, cc.author_id, cc.text_content, cc.media_url, cc.created_at,
		COALESCE(u.username, ''), COALESCE(u.image_url, '')
	FROM capsule_contents cc
	LEFT JOIN users u ON u.id = cc.author_id`

func scanContent(row interface{ Scan(...any) error }) (*capsule.Content, error) {
	ct := &capsule.Content{}
	err := row.Scan(&ct.ID, &ct.CapsuleID, &ct.AuthorID, &ct.TextContent, &ct.MediaURL, &ct.CreatedAt, &ct.AuthorUsername, &ct.AuthorImageURL)
	return ct, err
}

func (r *CapsuleRepository) GetContent(ctx context.Context, capsuleID, authorID uuid.UUID) (*capsule.Content, error) {
	ct, err := scanContent(r.db.QueryRow(ctx, contentQuery+` WHERE cc.capsule_id = $1 AND cc.author_id = $2`, capsuleID, authorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("get capsule content", err)
	}
	return ct, nil
}

func (r *CapsuleRepository) InsertContent(ctx context.Context, ct *capsule.Content) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO capsule_contents (id, capsule_id, author_id, text_content, media_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ct.ID, ct.CapsuleID, ct.AuthorID, ct.TextContent, ct.MediaURL, ct.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.EditLimitReached("you already added your content to this capsule")
	}
	return wrap("insert capsule content", err)
}

func (r *CapsuleRepository) ListContents(ctx context.Context, capsuleID uuid.UUID) ([]capsule.Content, error) {
	rows, err := r.db.Query(ctx, contentQuery+` WHERE cc.capsule_id = $1 ORDER BY cc.created_at ASC`, capsuleID)
	if err != nil {
		return nil, wrap("list capsule contents", err)
	}
	defer rows.Close()

	out := []capsule.Content{}
	for rows.Next() {
		ct, err := scanContent(rows)
		if err != nil {
			return nil, wrap("scan capsule content", err)
		}
		out = append(out, *ct)
	}
	return out, wrap("list capsule contents", rows.Err())
}

func (r *CapsuleRepository) ListActiveMemberIDs(ctx context.Context, capsuleID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.db, "list capsule members",
		`SELECT user_id FROM capsule_members WHERE capsule_id = $1 AND status = 'active'`, capsuleID)
}

func (r *CapsuleRepository) SoftDelete(ctx context.Context, capsuleID, ownerID uuid.UUID) (bool, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		UPDATE capsules SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status <> 'deleted'
		RETURNING id`,
		capsuleID, ownerID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("delete capsule", err)
	}
	return true, nil
}

func (r *CapsuleRepository) SetPinned(ctx context.Context, capsuleID, userID uuid.UUID, pinned bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE capsule_members SET is_pinned = $3 WHERE capsule_id = $1 AND user_id = $2`,
		capsuleID, userID, pinned,
	)
	return wrap("pin capsule", err)
}

func (r *CapsuleRepository) ListReadyToNotify(ctx context.Context, now time.Time, limit int) ([]capsule.Capsule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+capsuleColumns+`
		FROM capsules c
		WHERE c.status = 'locked' AND c.unlock_at <= $1 AND c.ready_notified_at IS NULL
		ORDER BY c.unlock_at ASC
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrap("list ready capsules", err)
	}
	defer rows.Close()

	out := []capsule.Capsule{}
	for rows.Next() {
		var c capsule.Capsule
		if err := rows.Scan(capsuleFields(&c)...); err != nil {
			return nil, wrap("scan ready capsule", err)
		}
		out = append(out, c)
	}
	return out, wrap("list ready capsules", rows.Err())
}

func (r *CapsuleRepository) MarkReadyNotified(ctx context.Context, capsuleID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE capsules SET ready_notified_at = $2 WHERE id = $1`, capsuleID, at)
	return wrap("mark capsule ready notified", err)
}

func collectIDs(ctx context.Context, db DB, op, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(op, err)
		}
		ids = append(ids, id)
	}
	return ids, wrap(op, rows.Err())
}
