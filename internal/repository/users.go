package repository

import (
	"context"

	"github.com/google/uuid"

	"timinkAPI/internal/types/user"
)

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.ImageURL, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *UserRepository) Upsert(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	query := `
	INSERT INTO users (clerk_id, email, username, first_name, last_name, image_url, email_verified)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (clerk_id) DO UPDATE SET
		email = EXCLUDED.email,
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		image_url = EXCLUDED.image_url,
		email_verified = EXCLUDED.email_verified,
		updated_at = NOW()
	RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query,
		req.ClerkID, req.Email, req.Username, req.FirstName, req.LastName, req.ImageURL, req.EmailVerified,
	))
	if err != nil {
		return nil, wrap("upsert user", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("get user", "user", err)
	}
	return u, nil
}

func (r *UserRepository) GetByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
	if err != nil {
		return nil, notFound("get user by clerk id", "user", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users SET
		username   = COALESCE($2, username),
		first_name = COALESCE($3, first_name),
		last_name  = COALESCE($4, last_name),
		image_url  = COALESCE($5, image_url),
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, id, req.Username, req.FirstName, req.LastName, req.ImageURL))
	if err != nil {
		return nil, notFound("update user", "user", err)
	}
	return u, nil
}

func (r *UserRepository) DeleteByClerkID(ctx context.Context, clerkID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	return wrap("delete user", err)
}
