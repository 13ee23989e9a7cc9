package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/types/diary"
)

type DiaryRepository struct {
	db DB
}

func NewDiaryRepository(db DB) *DiaryRepository {
	return &DiaryRepository{db: db}
}

func (r *DiaryRepository) CreateWithMembers(ctx context.Context, d *diary.Diary, memberIDs []uuid.UUID) error {
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO diaries (id, title, diary_type, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			d.ID, d.Title, d.DiaryType, d.OwnerID, d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, id := range append([]uuid.UUID{d.OwnerID}, memberIDs...) {
			batch.Queue(`
				INSERT INTO diary_members (diary_id, user_id, joined_at) VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`, d.ID, id, d.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return wrap("create diary", err)
}

// diaryQuery selects diaries as seen by member $1.
const diaryQuery = `
	SELECT d.id, d.title, d.diary_type, d.owner_id, d.created_at, d.updated_at, m.is_pinned,
		(SELECT MAX(e.created_at) FROM diary_entries e WHERE e.diary_id = d.id AND e.author_id = m.user_id)
	FROM diaries d
	JOIN diary_members m ON m.diary_id = d.id AND m.user_id = $1`

func scanDiary(row interface{ Scan(...any) error }) (*diary.Diary, error) {
	d := &diary.Diary{}
	err := row.Scan(&d.ID, &d.Title, &d.DiaryType, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt, &d.IsPinned, &d.LastEntryByMe)
	return d, err
}

func (r *DiaryRepository) Get(ctx context.Context, diaryID, userID uuid.UUID) (*diary.Diary, error) {
	d, err := scanDiary(r.db.QueryRow(ctx, diaryQuery+` WHERE d.id = $2`, userID, diaryID))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrap("get diary", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM diaries WHERE id = $1)`, diaryID).Scan(&exists); err != nil {
		return nil, wrap("get diary", err)
	}
	if !exists {
		return nil, apperr.NotFound("diary")
	}
	return nil, apperr.AccessDenied("you are not a member of this diary")
}

func (r *DiaryRepository) ListForMember(ctx context.Context, userID uuid.UUID) ([]diary.Diary, error) {
	rows, err := r.db.Query(ctx, diaryQuery+` ORDER BY m.is_pinned DESC, d.updated_at DESC`, userID)
	if err != nil {
		return nil, wrap("list diaries", err)
	}
	defer rows.Close()

	out := []diary.Diary{}
	for rows.Next() {
		d, err := scanDiary(rows)
		if err != nil {
			return nil, wrap("scan diary", err)
		}
		out = append(out, *d)
	}
	return out, wrap("list diaries", rows.Err())
}

func (r *DiaryRepository) ListMemberIDs(ctx context.Context, diaryID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(ctx, r.db, "list diary members",
		`SELECT user_id FROM diary_members WHERE diary_id = $1`, diaryID)
}

const entryQuery = `
	SELECT e.id, e.diary_id, e.author_id, e.content, e.posted_date, e.created_at,
		COALESCE(u.username, ''), COALESCE(u.image_url, '')
	FROM diary_entries e
	LEFT JOIN users u ON u.id = e.author_id`

func scanEntry(row interface{ Scan(...any) error }) (*diary.Entry, error) {
	e := &diary.Entry{}
	err := row.Scan(&e.ID, &e.DiaryID, &e.AuthorID, &e.Content, &e.PostedDate, &e.CreatedAt, &e.AuthorUsername, &e.AuthorImageURL)
	return e, err
}

func (r *DiaryRepository) LatestEntryByAuthor(ctx context.Context, diaryID, authorID uuid.UUID) (*diary.Entry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx,
		entryQuery+` WHERE e.diary_id = $1 AND e.author_id = $2 ORDER BY e.created_at DESC LIMIT 1`,
		diaryID, authorID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("latest diary entry", err)
	}
	return e, nil
}

func (r *DiaryRepository) GetEntry(ctx context.Context, entryID uuid.UUID) (*diary.Entry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, entryQuery+` WHERE e.id = $1`, entryID))
	if err != nil {
		return nil, notFound("get diary entry", "diary entry", err)
	}
	return e, nil
}

// InsertEntry relies on the (diary, author, posted_date) unique index to
// reject a second entry on the same local day.
func (r *DiaryRepository) InsertEntry(ctx context.Context, e *diary.Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO diary_entries (id, diary_id, author_id, content, posted_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.DiaryID, e.AuthorID, e.Content, dateOnly(e.PostedDate), e.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.EditLimitReached("you already wrote in this diary today")
	}
	return wrap("insert diary entry", err)
}

func (r *DiaryRepository) TouchUpdatedAt(ctx context.Context, diaryID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE diaries SET updated_at = $2 WHERE id = $1`, diaryID, at)
	return wrap("touch diary", err)
}

func (r *DiaryRepository) ListEntries(ctx context.Context, diaryID uuid.UUID, limit int) ([]diary.Entry, error) {
	return r.listEntries(ctx, "list diary entries",
		entryQuery+` WHERE e.diary_id = $1 ORDER BY e.created_at DESC LIMIT $2`, diaryID, limit)
}

func (r *DiaryRepository) ListEntriesPostedOn(ctx context.Context, userID uuid.UUID, day time.Time) ([]diary.Entry, error) {
	return r.listEntries(ctx, "list diary memories", entryQuery+`
		JOIN diary_members m ON m.diary_id = e.diary_id AND m.user_id = $1
		WHERE e.posted_date = $2
		ORDER BY e.created_at ASC`, userID, dateOnly(day))
}

func (r *DiaryRepository) listEntries(ctx context.Context, op, query string, args ...any) ([]diary.Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []diary.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, *e)
	}
	return out, wrap(op, rows.Err())
}

func (r *DiaryRepository) SetPinned(ctx context.Context, diaryID, userID uuid.UUID, pinned bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE diary_members SET is_pinned = $3 WHERE diary_id = $1 AND user_id = $2`,
		diaryID, userID, pinned,
	)
	return wrap("pin diary", err)
}

// dateOnly sends the calendar date of t, in t's own location, as a DATE
// literal so the server never shifts it through its session timezone.
func dateOnly(t time.Time) string {
	return t.Format(time.DateOnly)
}
