package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/clock"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/types/activity"
)

const (
	activityItemsPerSection = 3
	activityCacheTTL        = time.Minute
	memoryPreviewRunes      = 120
)

type cachedFeed struct {
	feed    *activity.Feed
	builtAt time.Time
}

// ActivityService assembles the per-user activity feed. Feeds are cached per
// (user, timezone) for a short TTL and dropped as soon as the event bus
// reports a change touching the user.
type ActivityService struct {
	capsules CapsuleRepository
	diaries  DiaryRepository
	friends  FriendshipRepository
	clock    clock.Clock

	mu    sync.Mutex
	cache map[uuid.UUID]map[string]cachedFeed
	// gen counts invalidations per user. A build that overlapped one is
	// returned but not cached.
	gen      map[uuid.UUID]uint64
	disposer []func()
}

func NewActivityService(capsules CapsuleRepository, diaries DiaryRepository, friends FriendshipRepository, bus *eventbus.Bus, clk clock.Clock) *ActivityService {
	s := &ActivityService{
		capsules: capsules,
		diaries:  diaries,
		friends:  friends,
		clock:    clk,
		cache:    make(map[uuid.UUID]map[string]cachedFeed),
		gen:      make(map[uuid.UUID]uint64),
	}

	if bus != nil {
		for _, topic := range []string{
			eventbus.TopicCapsulesChanged,
			eventbus.TopicDiariesChanged,
			eventbus.TopicFriendsChanged,
		} {
			s.disposer = append(s.disposer, bus.Subscribe(topic, s.invalidate))
		}
	}
	return s
}

// Close detaches the service from the event bus.
func (s *ActivityService) Close() {
	s.mu.Lock()
	disposers := s.disposer
	s.disposer = nil
	s.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
}

func (s *ActivityService) invalidate(ev eventbus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ev.UserIDs {
		delete(s.cache, id)
		s.gen[id]++
	}
}

func (s *ActivityService) GetFeed(ctx context.Context, userID uuid.UUID, loc *time.Location) (*activity.Feed, error) {
	now := s.clock.Now()
	key := loc.String()

	s.mu.Lock()
	if c, ok := s.cache[userID][key]; ok && now.Sub(c.builtAt) < activityCacheTTL {
		s.mu.Unlock()
		return c.feed, nil
	}
	gen := s.gen[userID]
	s.mu.Unlock()

	feed, err := s.build(ctx, userID, now, loc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen[userID] != gen {
		s.mu.Unlock()
		return feed, nil
	}
	if s.cache[userID] == nil {
		s.cache[userID] = make(map[string]cachedFeed)
	}
	s.cache[userID][key] = cachedFeed{feed: feed, builtAt: now}
	s.mu.Unlock()

	return feed, nil
}

func (s *ActivityService) build(ctx context.Context, userID uuid.UUID, now time.Time, loc *time.Location) (*activity.Feed, error) {
	memberships, err := s.capsules.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	diaries, err := s.diaries.ListForMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	memories, err := s.diaries.ListEntriesPostedOn(ctx, userID, StartOfLocalDay(now, loc).AddDate(0, 0, -365))
	if err != nil {
		return nil, err
	}
	requests, err := s.friends.ListPendingIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make(map[activity.Kind][]activity.Item, len(activity.SectionOrder))

	for _, m := range FilterUnlockable(memberships, now) {
		items[activity.KindCapsuleUnlockable] = append(items[activity.KindCapsuleUnlockable], activity.Item{
			Kind:     activity.KindCapsuleUnlockable,
			TargetID: m.Capsule.ID,
			Params: map[string]any{
				"title":     m.Capsule.Title,
				"unlock_at": m.Capsule.UnlockAt,
			},
		})
	}

	for _, d := range diaries {
		if !CanPostToday(d.LastEntryByMe, now, loc) {
			continue
		}
		items[activity.KindDiaryPostable] = append(items[activity.KindDiaryPostable], activity.Item{
			Kind:     activity.KindDiaryPostable,
			TargetID: d.ID,
			Params: map[string]any{
				"title":      d.Title,
				"diary_type": d.DiaryType,
			},
		})
	}

	for _, m := range FilterPending(memberships) {
		cd := ComputeTimeUntilUnlock(m.Capsule.UnlockAt, now)
		items[activity.KindCapsulePending] = append(items[activity.KindCapsulePending], activity.Item{
			Kind:     activity.KindCapsulePending,
			TargetID: m.Capsule.ID,
			Params: map[string]any{
				"title":     m.Capsule.Title,
				"unlock_at": m.Capsule.UnlockAt,
				"days_left": cd.Days,
			},
		})
	}

	for _, e := range memories {
		items[activity.KindDiaryMemory] = append(items[activity.KindDiaryMemory], activity.Item{
			Kind:     activity.KindDiaryMemory,
			TargetID: e.ID,
			Params: map[string]any{
				"diary_id":    e.DiaryID,
				"posted_date": e.PostedDate.Format(time.DateOnly),
				"preview":     preview(e.Content, memoryPreviewRunes),
				"author":      e.AuthorUsername,
			},
		})
	}

	for _, r := range requests {
		items[activity.KindFriendRequest] = append(items[activity.KindFriendRequest], activity.Item{
			Kind:     activity.KindFriendRequest,
			TargetID: r.ID,
			Params: map[string]any{
				"requester_id":       r.RequesterID,
				"requester_username": r.RequesterUsername,
			},
		})
	}

	return &activity.Feed{
		UserID:      userID,
		Sections:    assembleSections(items),
		GeneratedAt: now,
	}, nil
}

// assembleSections truncates each kind to its per-section limit and lays the
// non-empty ones out in the fixed section order.
func assembleSections(items map[activity.Kind][]activity.Item) []activity.Section {
	sections := make([]activity.Section, 0, len(activity.SectionOrder))
	for _, kind := range activity.SectionOrder {
		list := items[kind]
		if len(list) == 0 {
			continue
		}
		total := len(list)
		if len(list) > activityItemsPerSection {
			list = list[:activityItemsPerSection]
		}
		sections = append(sections, activity.Section{Kind: kind, Items: list, Total: total})
	}
	return sections
}

func preview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
