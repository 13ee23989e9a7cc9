package services

import (
	"context"
	"errors"
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
)

type queuedDispatch struct {
	mu   sync.Mutex
	jobs []*DispatchJob
}

func (q *queuedDispatch) Dispatch(n *notification.Notification, p *notification.NotificationPreferences) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, &DispatchJob{Notification: n, Preferences: p})
}

type stubPush struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubPush) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func newNotificationFixture() (*NotificationService, *fakeNotifications, *fakeUsers, *queuedDispatch) {
	repo := newFakeNotifications()
	users := newFakeUsers()
	q := &queuedDispatch{}
	return NewNotificationService(repo, users, q, eventbus.New(), clock.NewManual(t0)), repo, users, q
}

func TestNotify_RendersPerRecipient(t *testing.T) {
	svc, repo, users, q := newNotificationFixture()
	ctx := context.Background()
	actor := users.add("mina")
	r1, r2 := uuid.New(), uuid.New()

	err := svc.Notify(ctx, notification.Event{
		Type:       notification.TypeCapsuleOpened,
		Recipients: []uuid.UUID{r1, r2},
		ActorID:    &actor,
		Data:       map[string]any{"capsule_title": "Class of 2026"},
	})
	require.NoError(t, err)

	got := repo.forUser(r1)
	require.Len(t, got, 1)
	assert.Equal(t, `mina opened "Class of 2026"`, got[0].Body)
	assert.Equal(t, notification.PriorityNormal, got[0].Priority)
	require.NotNil(t, got[0].ExpiresAt)
	assert.Equal(t, t0.Add(30*24*time.Hour), *got[0].ExpiresAt)

	assert.Len(t, repo.forUser(r2), 1)
	assert.Len(t, q.jobs, 2)
}

func TestNotify_RespectsPreferences(t *testing.T) {
	svc, repo, _, q := newNotificationFixture()
	ctx := context.Background()
	muted := uuid.New()

	_, err := svc.UpdatePreferences(ctx, muted, &notification.UpdatePreferencesRequest{
		EnabledTypes: map[string]bool{string(notification.TypeDiaryEntry): false},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Notify(ctx, notification.Event{Type: notification.TypeDiaryEntry, Recipients: []uuid.UUID{muted}}))
	assert.Empty(t, repo.forUser(muted))
	assert.Empty(t, q.jobs)

	require.NoError(t, svc.Notify(ctx, notification.Event{Type: notification.TypeFriendRequest, Recipients: []uuid.UUID{muted}}))
	assert.Len(t, repo.forUser(muted), 1)
}

func TestNotify_ScheduledIsNotDispatchedImmediately(t *testing.T) {
	svc, repo, _, q := newNotificationFixture()
	later := t0.Add(time.Hour)
	user := uuid.New()

	require.NoError(t, svc.Notify(context.Background(), notification.Event{
		Type: notification.TypeCapsuleReady, Recipients: []uuid.UUID{user}, ScheduledFor: &later,
	}))
	assert.Len(t, repo.forUser(user), 1)
	assert.Empty(t, q.jobs)
}

func TestNotify_UnknownType(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()
	err := svc.Notify(context.Background(), notification.Event{Type: "poke", Recipients: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNotificationInbox(t *testing.T) {
	svc, _, _, _ := newNotificationFixture()
	ctx := context.Background()
	user := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, notification.Event{Type: notification.TypeFriendRequest, Recipients: []uuid.UUID{user}}))
	}

	list, err := svc.GetNotifications(ctx, user, 1, 2, false)
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, 3, list.TotalCount)
	assert.Equal(t, 3, list.UnreadCount)

	require.NoError(t, svc.MarkAsRead(ctx, list.Notifications[0].ID, user))
	count, err := svc.GetUnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.ErrorIs(t, svc.MarkAsRead(ctx, list.Notifications[0].ID, uuid.New()), apperr.ErrNotFound)

	require.NoError(t, svc.MarkAllAsRead(ctx, user))
	count, err = svc.GetUnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, svc.DeleteNotification(ctx, list.Notifications[1].ID, user))
	assert.ErrorIs(t, svc.DeleteNotification(ctx, list.Notifications[1].ID, user), apperr.ErrNotFound)
}

func TestRegisterDevice(t *testing.T) {
	svc, repo, _, _ := newNotificationFixture()
	ctx := context.Background()
	user := uuid.New()

	assert.ErrorIs(t, svc.RegisterDevice(ctx, user, &notification.RegisterDeviceRequest{Token: "", Platform: "ios"}), apperr.ErrValidation)
	assert.ErrorIs(t, svc.RegisterDevice(ctx, user, &notification.RegisterDeviceRequest{Token: "t", Platform: "web"}), apperr.ErrValidation)

	require.NoError(t, svc.RegisterDevice(ctx, user, &notification.RegisterDeviceRequest{Token: "tok", Platform: "iOS"}))
	require.NoError(t, svc.RegisterDevice(ctx, user, &notification.RegisterDeviceRequest{Token: "tok", Platform: "ios"}))

	prefs := repo.prefs[user]
	require.NotNil(t, prefs)
	require.Len(t, prefs.DeviceTokens, 1)
	assert.Equal(t, "ios", prefs.DeviceTokens[0].Platform)
}

func TestDispatcher_MarksSent(t *testing.T) {
	repo := newFakeNotifications()
	push := &stubPush{}
	d := NewNotificationDispatcher(repo, push, clock.NewManual(t0))

	n := &notification.Notification{ID: uuid.New(), UserID: uuid.New(), Priority: notification.PriorityNormal}
	prefs := notification.DefaultPreferences(n.UserID, t0)
	prefs.DeviceTokens = []notification.DeviceToken{{Token: "tok", Platform: "android"}}

	d.processJob(&DispatchJob{Notification: n, Preferences: prefs})

	assert.Equal(t, 1, push.calls)
	assert.True(t, repo.sent[n.ID])
}

func TestDispatcher_NoTokensSkipsPush(t *testing.T) {
	repo := newFakeNotifications()
	push := &stubPush{}
	d := NewNotificationDispatcher(repo, push, clock.NewManual(t0))

	n := &notification.Notification{ID: uuid.New(), UserID: uuid.New()}
	d.processJob(&DispatchJob{Notification: n, Preferences: notification.DefaultPreferences(n.UserID, t0)})

	assert.Zero(t, push.calls)
	assert.True(t, repo.sent[n.ID])
}

func TestDispatcher_RetriesHighPriorityOnly(t *testing.T) {
	repo := newFakeNotifications()
	push := &stubPush{err: errors.New("unregistered")}
	d := NewNotificationDispatcher(repo, push, clock.NewManual(t0))

	prefs := notification.DefaultPreferences(uuid.New(), t0)
	prefs.DeviceTokens = []notification.DeviceToken{{Token: "tok", Platform: "ios"}}

	high := &notification.Notification{ID: uuid.New(), Priority: notification.PriorityHigh}
	normal := &notification.Notification{ID: uuid.New(), Priority: notification.PriorityNormal}

	d.processJob(&DispatchJob{Notification: high, Preferences: prefs})
	d.processJob(&DispatchJob{Notification: normal, Preferences: prefs})

	assert.Equal(t, t0.Add(pushRetryDelay), repo.resch[high.ID])
	assert.NotContains(t, repo.resch, normal.ID)
	assert.False(t, repo.sent[high.ID])

	// Out of retries.
	repo.failed[high.ID] = maxPushRetries
	delete(repo.resch, high.ID)
	d.processJob(&DispatchJob{Notification: high, Preferences: prefs})
	assert.NotContains(t, repo.resch, high.ID)
}

func TestDispatcher_StartStop(t *testing.T) {
	repo := newFakeNotifications()
	d := NewNotificationDispatcher(repo, LogPushProvider{}, clock.NewManual(t0))
	d.Start()

	n := &notification.Notification{ID: uuid.New(), UserID: uuid.New()}
	d.Dispatch(n, notification.DefaultPreferences(n.UserID, t0))

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.sent[n.ID]
	}, time.Second, 10*time.Millisecond)

	d.Stop()
	d.Stop()
}

func TestDispatcher_ProcessDueAndCleanup(t *testing.T) {
	repo := newFakeNotifications()
	d := NewNotificationDispatcher(repo, LogPushProvider{}, clock.NewManual(t0))
	ctx := context.Background()

	past := t0.Add(-time.Minute)
	expired := t0.Add(-time.Hour)
	due := &notification.Notification{ID: uuid.New(), UserID: uuid.New(), Status: notification.StatusPending, ScheduledFor: &past}
	stale := &notification.Notification{ID: uuid.New(), UserID: uuid.New(), Status: notification.StatusSent, ExpiresAt: &expired}
	require.NoError(t, repo.Insert(ctx, due))
	require.NoError(t, repo.Insert(ctx, stale))

	d.ProcessDue(ctx)
	require.Len(t, d.jobQueue, 1)
	job := <-d.jobQueue
	assert.Equal(t, due.ID, job.Notification.ID)
	assert.True(t, job.Preferences.PushEnabled)

	d.Cleanup(ctx)
	assert.Len(t, repo.rows, 1)
}
