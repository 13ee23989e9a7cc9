package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/clock"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/capsule"
)

type CapsuleService struct {
	repo     CapsuleRepository
	store    ObjectStore
	notifier Notifier
	bus      *eventbus.Bus
	clock    clock.Clock
	async    runAsync
}

func NewCapsuleService(repo CapsuleRepository, store ObjectStore, notifier Notifier, bus *eventbus.Bus, clk clock.Clock) *CapsuleService {
	return &CapsuleService{
		repo:     repo,
		store:    store,
		notifier: notifier,
		bus:      bus,
		clock:    clk,
		async:    goAsync,
	}
}

func (s *CapsuleService) CreateCapsule(ctx context.Context, ownerID uuid.UUID, req *capsule.CreateCapsuleRequest) (*capsule.Capsule, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	capsuleType := req.CapsuleType
	if capsuleType == "" {
		capsuleType = capsule.TypePersonal
	}
	if !capsuleType.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown capsule type %q", req.CapsuleType))
	}

	now := s.clock.Now()
	if !req.UnlockAt.After(now) {
		return nil, apperr.Validation("unlock_at must be in the future")
	}

	members := without(req.MemberIDs, ownerID)
	if capsuleType == capsule.TypePersonal && len(members) > 0 {
		return nil, apperr.Validation("personal capsules cannot have members")
	}

	c := &capsule.Capsule{
		ID:          uuid.New(),
		Title:       title,
		Description: trimmedOrNil(req.Description),
		OwnerID:     ownerID,
		CapsuleType: capsuleType,
		Status:      capsule.StatusLocked,
		UnlockAt:    req.UnlockAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateWithOwner(ctx, c); err != nil {
		return nil, err
	}

	// Members are a secondary write: the capsule stays even if some fail.
	added := make([]uuid.UUID, 0, len(members))
	for _, memberID := range members {
		if err := s.repo.AddMember(ctx, c.ID, memberID); err != nil {
			log.Printf("CreateCapsule: Failed to add member %s to capsule %s: %v", memberID, c.ID, err)
			continue
		}
		added = append(added, memberID)
	}

	notifyBestEffort(s.async, s.notifier, notification.Event{
		Type:       notification.TypeCapsuleInvite,
		Recipients: added,
		ActorID:    &ownerID,
		Data: map[string]any{
			"capsule_id":    c.ID.String(),
			"capsule_title": c.Title,
		},
	})
	publish(s.bus, eventbus.TopicCapsulesChanged, c.ID, append(added, ownerID)...)

	return c, nil
}

// ListCapsules returns every live capsule the user is an active member of,
// pinned ones first, then soonest unlock first.
func (s *CapsuleService) ListCapsules(ctx context.Context, userID uuid.UUID) ([]capsule.View, error) {
	memberships, err := s.repo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := toViews(memberships, s.clock.Now())
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].IsPinned && !views[j].IsPinned
	})
	return views, nil
}

func (s *CapsuleService) GetCapsule(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.View, error) {
	m, err := s.repo.GetMembership(ctx, capsuleID, userID)
	if err != nil {
		return nil, err
	}
	view := toView(*m, s.clock.Now())
	return &view, nil
}

func (s *CapsuleService) Countdown(ctx context.Context, capsuleID, userID uuid.UUID) (capsule.Countdown, error) {
	m, err := s.repo.GetMembership(ctx, capsuleID, userID)
	if err != nil {
		return capsule.Countdown{}, err
	}
	return ComputeTimeUntilUnlock(m.Capsule.UnlockAt, s.clock.Now()), nil
}

// ListPending returns capsules the user still owes content to.
func (s *CapsuleService) ListPending(ctx context.Context, userID uuid.UUID) ([]capsule.View, error) {
	memberships, err := s.repo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toViews(FilterPending(memberships), s.clock.Now()), nil
}

// ListUnlockable returns locked capsules that are due, soonest first.
func (s *CapsuleService) ListUnlockable(ctx context.Context, userID uuid.UUID) ([]capsule.View, error) {
	memberships, err := s.repo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return toViews(FilterUnlockable(memberships, now), now), nil
}

// Unlock opens a capsule. Eligibility is read fresh from the store and the
// store update is itself conditional, so of several members racing past the
// same countdown exactly one succeeds.
func (s *CapsuleService) Unlock(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.Capsule, error) {
	m, err := s.repo.GetMembership(ctx, capsuleID, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !CanUnlock(&m.Capsule, now) {
		if m.Capsule.Status == capsule.StatusUnlocked {
			return nil, apperr.NotUnlockable("capsule is already unlocked")
		}
		return nil, apperr.NotUnlockable("capsule is still locked")
	}

	c, err := s.repo.Unlock(ctx, capsuleID, now)
	if err != nil {
		return nil, err
	}
	capsulesUnlocked.Inc()

	memberIDs, err := s.repo.ListActiveMemberIDs(ctx, capsuleID)
	if err != nil {
		log.Printf("Unlock: Failed to load members of capsule %s: %v", capsuleID, err)
	}
	notifyBestEffort(s.async, s.notifier, notification.Event{
		Type:       notification.TypeCapsuleOpened,
		Recipients: without(memberIDs, userID),
		ActorID:    &userID,
		Data: map[string]any{
			"capsule_id":    c.ID.String(),
			"capsule_title": c.Title,
		},
	})
	publish(s.bus, eventbus.TopicCapsulesChanged, c.ID, append(memberIDs, userID)...)

	return c, nil
}

// RecordContent stores the author's single submission to a capsule.
func (s *CapsuleService) RecordContent(ctx context.Context, capsuleID, authorID uuid.UUID, req *capsule.RecordContentRequest) (*capsule.Content, error) {
	text := trimmedOrNil(req.TextContent)
	media := trimmedOrNil(req.MediaURL)
	if text == nil && media == nil {
		return nil, apperr.Validation("text_content or media_url is required")
	}

	if err := s.checkCanRecord(ctx, capsuleID, authorID); err != nil {
		return nil, err
	}
	return s.insertContent(ctx, capsuleID, authorID, text, media)
}

// RecordContentWithMedia uploads image to the object store and records it
// together with the optional text. The upload only happens after every
// precondition passed; a failed insert removes the uploaded object again.
func (s *CapsuleService) RecordContentWithMedia(ctx context.Context, capsuleID, authorID uuid.UUID, text *string, image io.Reader, contentType string) (*capsule.Content, error) {
	if image == nil {
		return s.RecordContent(ctx, capsuleID, authorID, &capsule.RecordContentRequest{TextContent: text})
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Validation("only image uploads are supported")
	}
	if s.store == nil {
		return nil, apperr.Transport("upload capsule media", errors.New("object store not configured"))
	}

	if err := s.checkCanRecord(ctx, capsuleID, authorID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("capsules/%s/%s/%s", capsuleID, authorID, uuid.New())
	url, err := s.store.Upload(ctx, key, image, contentType)
	if err != nil {
		return nil, apperr.Transport("upload capsule media", err)
	}

	content, err := s.insertContent(ctx, capsuleID, authorID, trimmedOrNil(text), &url)
	if err != nil {
		if delErr := s.store.Delete(context.Background(), url); delErr != nil {
			log.Printf("RecordContentWithMedia: Failed to remove orphaned upload %s: %v", key, delErr)
		}
		return nil, err
	}
	return content, nil
}

func (s *CapsuleService) checkCanRecord(ctx context.Context, capsuleID, authorID uuid.UUID) error {
	m, err := s.repo.GetMembership(ctx, capsuleID, authorID)
	if err != nil {
		return err
	}
	if m.Capsule.Status != capsule.StatusLocked {
		return apperr.Validation("capsule no longer accepts content")
	}

	existing, err := s.repo.GetContent(ctx, capsuleID, authorID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperr.EditLimitReached("you already added your content to this capsule")
	}
	return nil
}

func (s *CapsuleService) insertContent(ctx context.Context, capsuleID, authorID uuid.UUID, text, media *string) (*capsule.Content, error) {
	content := &capsule.Content{
		ID:          uuid.New(),
		CapsuleID:   capsuleID,
		AuthorID:    authorID,
		TextContent: text,
		MediaURL:    media,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.InsertContent(ctx, content); err != nil {
		return nil, err
	}
	capsuleContents.Inc()
	publish(s.bus, eventbus.TopicCapsulesChanged, capsuleID, authorID)
	return content, nil
}

// ListContents returns the submissions of an unlocked capsule.
func (s *CapsuleService) ListContents(ctx context.Context, capsuleID, userID uuid.UUID) ([]capsule.Content, error) {
	m, err := s.repo.GetMembership(ctx, capsuleID, userID)
	if err != nil {
		return nil, err
	}
	if m.Capsule.Status != capsule.StatusUnlocked {
		return nil, apperr.AccessDenied("contents stay sealed until the capsule is unlocked")
	}
	return s.repo.ListContents(ctx, capsuleID)
}

func (s *CapsuleService) SetPinned(ctx context.Context, capsuleID, userID uuid.UUID, pinned bool) error {
	if _, err := s.repo.GetMembership(ctx, capsuleID, userID); err != nil {
		return err
	}
	if err := s.repo.SetPinned(ctx, capsuleID, userID, pinned); err != nil {
		return err
	}
	publish(s.bus, eventbus.TopicCapsulesChanged, capsuleID, userID)
	return nil
}

// Delete soft-deletes a capsule. Only the owner's update touches a row; zero
// affected rows is reported as access denied.
func (s *CapsuleService) Delete(ctx context.Context, capsuleID, userID uuid.UUID) error {
	memberIDs, err := s.repo.ListActiveMemberIDs(ctx, capsuleID)
	if err != nil {
		return err
	}

	ok, err := s.repo.SoftDelete(ctx, capsuleID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.AccessDenied("only the owner can delete this capsule")
	}

	publish(s.bus, eventbus.TopicCapsulesChanged, capsuleID, append(memberIDs, userID)...)
	return nil
}
