package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/clock"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/notification"
)

const (
	defaultNotificationPageSize = 20
	maxNotificationPageSize     = 100
	maxDeviceTokens             = 10
)

// Dispatcher queues a stored notification for push delivery.
type Dispatcher interface {
	Dispatch(notif *notification.Notification, prefs *notification.NotificationPreferences)
}

// NotificationService stores in-app notifications, applies the recipient's
// preferences and hands pushes to the dispatcher. It is the Notifier the
// rule services fan out through.
type NotificationService struct {
	repo       NotificationRepository
	users      UserRepository
	dispatcher Dispatcher
	bus        *eventbus.Bus
	clock      clock.Clock
}

func NewNotificationService(repo NotificationRepository, users UserRepository, dispatcher Dispatcher, bus *eventbus.Bus, clk clock.Clock) *NotificationService {
	return &NotificationService{
		repo:       repo,
		users:      users,
		dispatcher: dispatcher,
		bus:        bus,
		clock:      clk,
	}
}

// Notify renders ev once per recipient and stores it. A failure for one
// recipient does not stop the others; the joined error is returned.
func (s *NotificationService) Notify(ctx context.Context, ev notification.Event) error {
	tpl, ok := notification.TemplateFor(ev.Type)
	if !ok {
		return apperr.Validation(fmt.Sprintf("unknown notification type %q", ev.Type))
	}

	data := make(map[string]any, len(ev.Data)+1)
	for k, v := range ev.Data {
		data[k] = v
	}
	if ev.ActorID != nil && s.users != nil {
		if actor, err := s.users.GetByID(ctx, *ev.ActorID); err == nil {
			data["actor_username"] = actor.Username
		} else {
			log.Printf("Notify: Failed to load actor %s: %v", *ev.ActorID, err)
			data["actor_username"] = "Someone"
		}
	}

	priority := ev.Priority
	if priority == "" {
		priority = tpl.DefaultPriority
	}

	var errs []error
	for _, userID := range ev.Recipients {
		if err := s.notifyOne(ctx, userID, ev, tpl, priority, data); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", userID, err))
		}
	}

	if len(ev.Recipients) > 0 {
		publish(s.bus, eventbus.TopicNotificationsChanged, uuid.Nil, ev.Recipients...)
	}
	return errors.Join(errs...)
}

func (s *NotificationService) notifyOne(ctx context.Context, userID uuid.UUID, ev notification.Event, tpl notification.Template, priority notification.NotificationPriority, data map[string]any) error {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.Allows(ev.Type) || (!prefs.InAppEnabled && !prefs.PushEnabled) {
		return nil
	}

	now := s.clock.Now()
	expiresAt := now.Add(tpl.TTL)
	notif := &notification.Notification{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         ev.Type,
		Priority:     priority,
		Status:       notification.StatusPending,
		Title:        notification.Render(tpl.Title, data),
		Body:         notification.Render(tpl.Body, data),
		Data:         data,
		ActorID:      ev.ActorID,
		ScheduledFor: ev.ScheduledFor,
		CreatedAt:    now,
		ExpiresAt:    &expiresAt,
	}
	if err := s.repo.Insert(ctx, notif); err != nil {
		return err
	}

	if s.dispatcher != nil && (notif.ScheduledFor == nil || !notif.ScheduledFor.After(now)) {
		s.dispatcher.Dispatch(notif, prefs)
	}
	return nil
}

func (s *NotificationService) preferences(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return notification.DefaultPreferences(userID, s.clock.Now()), nil
	}
	return prefs, nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxNotificationPageSize {
		pageSize = defaultNotificationPageSize
	}

	list, err := s.repo.List(ctx, userID, pageSize, (page-1)*pageSize, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*notification.Notification{}
	}

	return &notification.NotificationListResponse{
		Notifications: list,
		UnreadCount:   unread,
		TotalCount:    total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, notificationID, userID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	publish(s.bus, eventbus.TopicNotificationsChanged, notificationID, userID)
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.MarkAllRead(ctx, userID, s.clock.Now()); err != nil {
		return err
	}
	publish(s.bus, eventbus.TopicNotificationsChanged, uuid.Nil, userID)
	return nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, notificationID, userID uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	publish(s.bus, eventbus.TopicNotificationsChanged, notificationID, userID)
	return nil
}

func (s *NotificationService) GetPreferences(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error) {
	return s.preferences(ctx, userID)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uuid.UUID, req *notification.UpdatePreferencesRequest) (*notification.NotificationPreferences, error) {
	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.PushEnabled != nil {
		prefs.PushEnabled = *req.PushEnabled
	}
	if req.InAppEnabled != nil {
		prefs.InAppEnabled = *req.InAppEnabled
	}
	for t, enabled := range req.EnabledTypes {
		if _, ok := notification.TemplateFor(notification.NotificationType(t)); !ok {
			return nil, apperr.Validation(fmt.Sprintf("unknown notification type %q", t))
		}
		if prefs.EnabledTypes == nil {
			prefs.EnabledTypes = map[string]bool{}
		}
		prefs.EnabledTypes[t] = enabled
	}
	prefs.UpdatedAt = s.clock.Now()

	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// RegisterDevice adds or refreshes a push token. Only the most recently used
// tokens are kept.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return apperr.Validation("token is required")
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if platform != "ios" && platform != "android" {
		return apperr.Validation("platform must be ios or android")
	}

	prefs, err := s.preferences(ctx, userID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	found := false
	for i := range prefs.DeviceTokens {
		if prefs.DeviceTokens[i].Token == token {
			prefs.DeviceTokens[i].Platform = platform
			prefs.DeviceTokens[i].LastUsed = now
			found = true
			break
		}
	}
	if !found {
		prefs.DeviceTokens = append(prefs.DeviceTokens, notification.DeviceToken{
			Token:    token,
			Platform: platform,
			AddedAt:  now,
			LastUsed: now,
		})
	}
	if len(prefs.DeviceTokens) > maxDeviceTokens {
		prefs.DeviceTokens = prefs.DeviceTokens[len(prefs.DeviceTokens)-maxDeviceTokens:]
	}
	prefs.UpdatedAt = now

	return s.repo.SavePreferences(ctx, prefs)
}
