package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/clock"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/capsule"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

type capsuleFixture struct {
	svc      *CapsuleService
	repo     *fakeCapsules
	store    *fakeStore
	notifier *recordingNotifier
	bus      *eventbus.Bus
	clock    *clock.Manual
}

func newCapsuleFixture() *capsuleFixture {
	f := &capsuleFixture{
		repo:     newFakeCapsules(),
		store:    newFakeStore(),
		notifier: &recordingNotifier{},
		bus:      eventbus.New(),
		clock:    clock.NewManual(t0),
	}
	f.svc = NewCapsuleService(f.repo, f.store, f.notifier, f.bus, f.clock)
	f.svc.async = syncRun
	return f
}

func (f *capsuleFixture) create(t *testing.T, owner uuid.UUID, unlockIn time.Duration, members ...uuid.UUID) *capsule.Capsule {
	t.Helper()
	typ := capsule.TypePersonal
	if len(members) > 0 {
		typ = capsule.TypeWithFriends
	}
	c, err := f.svc.CreateCapsule(context.Background(), owner, &capsule.CreateCapsuleRequest{
		Title:       "Summer 2026",
		CapsuleType: typ,
		UnlockAt:    f.clock.Now().Add(unlockIn),
		MemberIDs:   members,
	})
	require.NoError(t, err)
	return c
}

func TestComputeTimeUntilUnlock(t *testing.T) {
	tests := []struct {
		name string
		left time.Duration
		want capsule.Countdown
	}{
		{"already due", 0, capsule.Countdown{IsUnlockable: true}},
		{"in the past", -time.Hour, capsule.Countdown{IsUnlockable: true}},
		{"under a minute", 59 * time.Second, capsule.Countdown{}},
		{"mixed", 2*day + 3*time.Hour + 4*time.Minute + 59*time.Second, capsule.Countdown{Days: 2, Hours: 3, Minutes: 4}},
		{"exact hours", 5 * time.Hour, capsule.Countdown{Hours: 5}},
		{"one year", 365 * day, capsule.Countdown{Days: 365}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTimeUntilUnlock(t0.Add(tt.left), t0))
		})
	}
}

func TestComputeTimeUntilUnlock_NeverExceedsRemaining(t *testing.T) {
	for _, left := range []time.Duration{
		time.Second, time.Minute + time.Second, 23*time.Hour + 59*time.Minute + 59*time.Second,
		day, 7*day + 13*time.Hour, 400*day + 1,
	} {
		cd := ComputeTimeUntilUnlock(t0.Add(left), t0)
		total := time.Duration(cd.Days)*day + time.Duration(cd.Hours)*time.Hour + time.Duration(cd.Minutes)*time.Minute

		assert.False(t, cd.IsUnlockable, left.String())
		assert.LessOrEqual(t, total, left, left.String())
		assert.Less(t, left-total, time.Minute, left.String())
		assert.Less(t, cd.Hours, 24)
		assert.Less(t, cd.Minutes, 60)
	}
}

func TestCreateCapsule_Validation(t *testing.T) {
	f := newCapsuleFixture()
	owner := uuid.New()
	ctx := context.Background()

	_, err := f.svc.CreateCapsule(ctx, owner, &capsule.CreateCapsuleRequest{Title: "  ", UnlockAt: t0.Add(day)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateCapsule(ctx, owner, &capsule.CreateCapsuleRequest{Title: "x", UnlockAt: t0})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateCapsule(ctx, owner, &capsule.CreateCapsuleRequest{Title: "x", CapsuleType: "group", UnlockAt: t0.Add(day)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateCapsule(ctx, owner, &capsule.CreateCapsuleRequest{
		Title: "x", CapsuleType: capsule.TypePersonal, UnlockAt: t0.Add(day), MemberIDs: []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Empty(t, f.repo.capsules)
}

func TestCreateCapsule_MembersAreBestEffort(t *testing.T) {
	f := newCapsuleFixture()
	owner, ok, broken := uuid.New(), uuid.New(), uuid.New()
	f.repo.failAddMember[broken] = true

	c := f.create(t, owner, day, ok, broken, owner)

	ids, err := f.repo.ListActiveMemberIDs(context.Background(), c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{owner, ok}, ids)

	invites := f.notifier.ofType(notification.TypeCapsuleInvite)
	require.Len(t, invites, 1)
	assert.Equal(t, []uuid.UUID{ok}, invites[0].Recipients)
}

func TestUnlock_Scenario(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner, friend := uuid.New(), uuid.New()
	c := f.create(t, owner, time.Hour, friend)

	unlockable, err := f.svc.ListUnlockable(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, unlockable)

	_, err = f.svc.Unlock(ctx, c.ID, owner)
	assert.ErrorIs(t, err, apperr.ErrNotUnlockable)

	f.clock.Advance(time.Hour + time.Second)

	unlockable, err = f.svc.ListUnlockable(ctx, owner)
	require.NoError(t, err)
	require.Len(t, unlockable, 1)
	assert.Equal(t, c.ID, unlockable[0].ID)
	assert.True(t, unlockable[0].Countdown.IsUnlockable)

	opened, err := f.svc.Unlock(ctx, c.ID, friend)
	require.NoError(t, err)
	assert.Equal(t, capsule.StatusUnlocked, opened.Status)
	require.NotNil(t, opened.UnlockedAt)
	assert.Equal(t, f.clock.Now(), *opened.UnlockedAt)

	_, err = f.svc.Unlock(ctx, c.ID, owner)
	assert.ErrorIs(t, err, apperr.ErrNotUnlockable)

	opens := f.notifier.ofType(notification.TypeCapsuleOpened)
	require.Len(t, opens, 1)
	assert.Equal(t, []uuid.UUID{owner}, opens[0].Recipients)
}

func TestUnlock_ConcurrentCallersExactlyOneWins(t *testing.T) {
	f := newCapsuleFixture()
	owner := uuid.New()
	members := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	c := f.create(t, owner, time.Minute, members...)
	f.clock.Advance(time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for _, id := range append(members, owner) {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Unlock(context.Background(), c.ID, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, apperr.ErrNotUnlockable) {
				losses++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, losses)
}

func TestUnlock_NonMember(t *testing.T) {
	f := newCapsuleFixture()
	c := f.create(t, uuid.New(), time.Minute)
	f.clock.Advance(time.Hour)

	_, err := f.svc.Unlock(context.Background(), c.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)

	_, err = f.svc.Unlock(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordContent_OnePerAuthor(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := f.create(t, owner, day)

	first, err := f.svc.RecordContent(ctx, c.ID, owner, &capsule.RecordContentRequest{TextContent: strp(" dear future me ")})
	require.NoError(t, err)
	assert.Equal(t, "dear future me", *first.TextContent)

	_, err = f.svc.RecordContent(ctx, c.ID, owner, &capsule.RecordContentRequest{TextContent: strp("again")})
	assert.ErrorIs(t, err, apperr.ErrEditLimitReached)

	assert.Len(t, f.repo.contents[c.ID], 1)
}

func TestRecordContent_Validation(t *testing.T) {
	f := newCapsuleFixture()
	owner := uuid.New()
	c := f.create(t, owner, day)

	_, err := f.svc.RecordContent(context.Background(), c.ID, owner, &capsule.RecordContentRequest{TextContent: strp("   ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.repo.contents[c.ID])
}

func TestRecordContent_RejectedAfterUnlock(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := f.create(t, owner, time.Minute)
	f.clock.Advance(time.Minute)
	_, err := f.svc.Unlock(ctx, c.ID, owner)
	require.NoError(t, err)

	_, err = f.svc.RecordContent(ctx, c.ID, owner, &capsule.RecordContentRequest{TextContent: strp("late")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordContentWithMedia(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := f.create(t, owner, day)

	content, err := f.svc.RecordContentWithMedia(ctx, c.ID, owner, strp("caption"), strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	require.NotNil(t, content.MediaURL)
	assert.Contains(t, *content.MediaURL, "capsules/"+c.ID.String()+"/"+owner.String()+"/")
	assert.Len(t, f.store.objects, 1)

	// A second attempt fails before anything is uploaded.
	_, err = f.svc.RecordContentWithMedia(ctx, c.ID, owner, nil, strings.NewReader("more"), "image/png")
	assert.ErrorIs(t, err, apperr.ErrEditLimitReached)
	assert.Equal(t, 1, f.store.uploads)
}

func TestRecordContentWithMedia_UploadFailure(t *testing.T) {
	f := newCapsuleFixture()
	owner := uuid.New()
	c := f.create(t, owner, day)
	f.store.uploadErr = errors.New("connection reset")

	_, err := f.svc.RecordContentWithMedia(context.Background(), c.ID, owner, nil, strings.NewReader("x"), "image/jpeg")
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Empty(t, f.repo.contents[c.ID])
}

func TestRecordContentWithMedia_RejectsNonImage(t *testing.T) {
	f := newCapsuleFixture()
	owner := uuid.New()
	c := f.create(t, owner, day)

	_, err := f.svc.RecordContentWithMedia(context.Background(), c.ID, owner, nil, strings.NewReader("x"), "application/pdf")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, f.store.uploads)
}

func TestListPending(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner := uuid.New()
	written := f.create(t, owner, day)
	open := f.create(t, owner, 2*day)

	_, err := f.svc.RecordContent(ctx, written.ID, owner, &capsule.RecordContentRequest{TextContent: strp("done")})
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx, owner)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, open.ID, pending[0].ID)
}

func TestListUnlockable_OrderedBySoonest(t *testing.T) {
	f := newCapsuleFixture()
	owner := uuid.New()
	later := f.create(t, owner, 3*time.Hour)
	sooner := f.create(t, owner, time.Hour)
	f.create(t, owner, 10*day)

	f.clock.Advance(4 * time.Hour)

	views, err := f.svc.ListUnlockable(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, sooner.ID, views[0].ID)
	assert.Equal(t, later.ID, views[1].ID)
}

func TestListContents_OnlyAfterUnlock(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner := uuid.New()
	c := f.create(t, owner, time.Minute)

	_, err := f.svc.RecordContent(ctx, c.ID, owner, &capsule.RecordContentRequest{TextContent: strp("hi")})
	require.NoError(t, err)

	_, err = f.svc.ListContents(ctx, c.ID, owner)
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Unlock(ctx, c.ID, owner)
	require.NoError(t, err)

	contents, err := f.svc.ListContents(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Len(t, contents, 1)
}

func TestListCapsules_PinnedFirst(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner := uuid.New()
	f.create(t, owner, day)
	pinned := f.create(t, owner, 5*day)

	require.NoError(t, f.svc.SetPinned(ctx, pinned.ID, owner, true))

	views, err := f.svc.ListCapsules(ctx, owner)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, pinned.ID, views[0].ID)
	assert.True(t, views[0].IsPinned)
}

func TestDelete_OwnerOnly(t *testing.T) {
	f := newCapsuleFixture()
	ctx := context.Background()
	owner, friend := uuid.New(), uuid.New()
	c := f.create(t, owner, day, friend)

	assert.ErrorIs(t, f.svc.Delete(ctx, c.ID, friend), apperr.ErrAccessDenied)
	require.NoError(t, f.svc.Delete(ctx, c.ID, owner))

	_, err := f.svc.GetCapsule(ctx, c.ID, owner)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCapsuleMutationsPublishToBus(t *testing.T) {
	f := newCapsuleFixture()
	var got []eventbus.Event
	dispose := f.bus.Subscribe(eventbus.TopicCapsulesChanged, func(ev eventbus.Event) { got = append(got, ev) })
	defer dispose()

	owner := uuid.New()
	c := f.create(t, owner, day)

	require.NotEmpty(t, got)
	assert.Equal(t, c.ID, got[0].SubjectID)
	assert.Contains(t, got[0].UserIDs, owner)
}
