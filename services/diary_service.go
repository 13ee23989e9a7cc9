package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/clock"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/diary"
)

const defaultEntryPageSize = 50

// StartOfLocalDay returns local midnight of the calendar day t falls on in loc.
func StartOfLocalDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// NextLocalMidnight returns the first local midnight strictly after t.
// time.Date normalises day overflow and handles DST shifts.
func NextLocalMidnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+1, 0, 0, 0, 0, loc)
}

// CanPostToday reports whether an author whose latest entry was created at
// last may post at now. A nil last means the author never posted.
func CanPostToday(last *time.Time, now time.Time, loc *time.Location) bool {
	if last == nil {
		return true
	}
	return last.Before(StartOfLocalDay(now, loc))
}

// NextPostTime is local midnight after last, or nil when last is nil. It is
// evaluated in the same location as CanPostToday so both agree on where a
// day ends.
func NextPostTime(last *time.Time, loc *time.Location) *time.Time {
	if last == nil {
		return nil
	}
	next := NextLocalMidnight(*last, loc)
	return &next
}

type DiaryService struct {
	repo     DiaryRepository
	notifier Notifier
	bus      *eventbus.Bus
	clock    clock.Clock
	async    runAsync
}

func NewDiaryService(repo DiaryRepository, notifier Notifier, bus *eventbus.Bus, clk clock.Clock) *DiaryService {
	return &DiaryService{
		repo:     repo,
		notifier: notifier,
		bus:      bus,
		clock:    clk,
		async:    goAsync,
	}
}

func (s *DiaryService) CreateDiary(ctx context.Context, ownerID uuid.UUID, req *diary.CreateDiaryRequest) (*diary.Diary, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	diaryType := req.DiaryType
	if diaryType == "" {
		diaryType = diary.TypePersonal
	}
	if !diaryType.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown diary type %q", req.DiaryType))
	}

	members := without(req.MemberIDs, ownerID)
	if diaryType == diary.TypePersonal && len(members) > 0 {
		return nil, apperr.Validation("personal diaries cannot have members")
	}

	now := s.clock.Now()
	d := &diary.Diary{
		ID:        uuid.New(),
		Title:     title,
		DiaryType: diaryType,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateWithMembers(ctx, d, members); err != nil {
		return nil, err
	}

	publish(s.bus, eventbus.TopicDiariesChanged, d.ID, append(members, ownerID)...)
	return d, nil
}

// ListDiaries returns the member's diaries, pinned first, then most recently
// updated.
func (s *DiaryService) ListDiaries(ctx context.Context, userID uuid.UUID) ([]diary.Diary, error) {
	diaries, err := s.repo.ListForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(diaries, func(i, j int) bool {
		if diaries[i].IsPinned != diaries[j].IsPinned {
			return diaries[i].IsPinned
		}
		return diaries[i].UpdatedAt.After(diaries[j].UpdatedAt)
	})
	return diaries, nil
}

func (s *DiaryService) GetDiary(ctx context.Context, diaryID, userID uuid.UUID) (*diary.Diary, error) {
	return s.repo.Get(ctx, diaryID, userID)
}

// Gate reports whether authorID may post to diaryID today in loc, and the
// next local midnight after their latest entry.
func (s *DiaryService) Gate(ctx context.Context, diaryID, authorID uuid.UUID, loc *time.Location) (*diary.Gate, error) {
	if _, err := s.repo.Get(ctx, diaryID, authorID); err != nil {
		return nil, err
	}

	last, err := s.latestEntryTime(ctx, diaryID, authorID)
	if err != nil {
		return nil, err
	}

	return &diary.Gate{
		CanPostToday: CanPostToday(last, s.clock.Now(), loc),
		NextPostTime: NextPostTime(last, loc),
	}, nil
}

func (s *DiaryService) CanPostToday(ctx context.Context, diaryID, authorID uuid.UUID, loc *time.Location) (bool, error) {
	gate, err := s.Gate(ctx, diaryID, authorID, loc)
	if err != nil {
		return false, err
	}
	return gate.CanPostToday, nil
}

func (s *DiaryService) GetNextPostTime(ctx context.Context, diaryID, authorID uuid.UUID, loc *time.Location) (*time.Time, error) {
	gate, err := s.Gate(ctx, diaryID, authorID, loc)
	if err != nil {
		return nil, err
	}
	return gate.NextPostTime, nil
}

func (s *DiaryService) latestEntryTime(ctx context.Context, diaryID, authorID uuid.UUID) (*time.Time, error) {
	latest, err := s.repo.LatestEntryByAuthor(ctx, diaryID, authorID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return &latest.CreatedAt, nil
}

// CreateEntry stores one entry. It does not consult the gate itself; the
// store's (diary, author, posted_date) unique index turns a same-day double
// post into EditLimitReached.
func (s *DiaryService) CreateEntry(ctx context.Context, diaryID, authorID uuid.UUID, req *diary.CreateEntryRequest, loc *time.Location) (*diary.Entry, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}

	d, err := s.repo.Get(ctx, diaryID, authorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entry := &diary.Entry{
		ID:         uuid.New(),
		DiaryID:    diaryID,
		AuthorID:   authorID,
		Content:    content,
		PostedDate: StartOfLocalDay(now, loc),
		CreatedAt:  now,
	}
	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	diaryEntries.Inc()

	if err := s.repo.TouchUpdatedAt(ctx, diaryID, now); err != nil {
		log.Printf("CreateEntry: Failed to touch diary %s: %v", diaryID, err)
	}

	memberIDs, err := s.repo.ListMemberIDs(ctx, diaryID)
	if err != nil {
		log.Printf("CreateEntry: Failed to load members of diary %s: %v", diaryID, err)
	}
	notifyBestEffort(s.async, s.notifier, notification.Event{
		Type:       notification.TypeDiaryEntry,
		Recipients: without(memberIDs, authorID),
		ActorID:    &authorID,
		Data: map[string]any{
			"diary_id":    diaryID.String(),
			"diary_title": d.Title,
			"entry_id":    entry.ID.String(),
		},
	})
	publish(s.bus, eventbus.TopicDiariesChanged, diaryID, append(memberIDs, authorID)...)

	return entry, nil
}

func (s *DiaryService) ListEntries(ctx context.Context, diaryID, userID uuid.UUID, limit int) ([]diary.Entry, error) {
	if _, err := s.repo.Get(ctx, diaryID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = defaultEntryPageSize
	}
	return s.repo.ListEntries(ctx, diaryID, limit)
}

// Memories returns entries from the user's diaries posted exactly 365 days
// before the caller's local today.
func (s *DiaryService) Memories(ctx context.Context, userID uuid.UUID, loc *time.Location) ([]diary.Entry, error) {
	today := StartOfLocalDay(s.clock.Now(), loc)
	return s.repo.ListEntriesPostedOn(ctx, userID, today.AddDate(0, 0, -365))
}

func (s *DiaryService) SetPinned(ctx context.Context, diaryID, userID uuid.UUID, pinned bool) error {
	if _, err := s.repo.Get(ctx, diaryID, userID); err != nil {
		return err
	}
	if err := s.repo.SetPinned(ctx, diaryID, userID, pinned); err != nil {
		return err
	}
	publish(s.bus, eventbus.TopicDiariesChanged, diaryID, userID)
	return nil
}
