package services

import (
	"context"
	"log"
	"sync"
	"time"

	"timinkAPI/internal/clock"
	"timinkAPI/internal/notification"
)

const (
	dispatchWorkers     = 5
	dispatchQueueSize   = 100
	dispatchEnqueueWait = 5 * time.Second
	dispatchJobTimeout  = 10 * time.Second
	dueBatchSize        = 100
	maxPushRetries      = 3
	pushRetryDelay      = 5 * time.Minute
	readRetention       = 90 * 24 * time.Hour
)

// PushProvider delivers a rendered push to a user's devices. The FCM service
// in internal/notification satisfies it.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type DispatchJob struct {
	Notification *notification.Notification
	Preferences  *notification.NotificationPreferences
}

// NotificationDispatcher owns a fixed pool of workers draining a bounded job
// queue, plus two tickers: one re-queues scheduled notifications that came
// due, the other purges expired and long-read rows.
type NotificationDispatcher struct {
	repo         NotificationRepository
	pushProvider PushProvider
	clock        clock.Clock

	workers  int
	jobQueue chan *DispatchJob
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dueInterval     time.Duration
	cleanupInterval time.Duration
}

func NewNotificationDispatcher(repo NotificationRepository, provider PushProvider, clk clock.Clock) *NotificationDispatcher {
	return &NotificationDispatcher{
		repo:            repo,
		pushProvider:    provider,
		clock:           clk,
		workers:         dispatchWorkers,
		jobQueue:        make(chan *DispatchJob, dispatchQueueSize),
		stopChan:        make(chan struct{}),
		dueInterval:     time.Minute,
		cleanupInterval: 24 * time.Hour,
	}
}

// Start launches the worker pool and the periodic jobs.
func (d *NotificationDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.wg.Add(2)
	go d.every(d.dueInterval, d.ProcessDue)
	go d.every(d.cleanupInterval, d.Cleanup)
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) every(interval time.Duration, fn func(context.Context)) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			fn(ctx)
			cancel()
		case <-d.stopChan:
			return
		}
	}
}

// Dispatch queues a notification for delivery. A full queue drops the job
// after a short wait; the row stays pending and is not retried.
func (d *NotificationDispatcher) Dispatch(notif *notification.Notification, prefs *notification.NotificationPreferences) {
	job := &DispatchJob{Notification: notif, Preferences: prefs}

	select {
	case d.jobQueue <- job:
	case <-time.After(dispatchEnqueueWait):
		log.Printf("Dispatch: Failed to queue notification %s: queue full", notif.ID)
	case <-d.stopChan:
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchJobTimeout)
	defer cancel()

	notif := job.Notification
	prefs := job.Preferences

	if prefs.PushEnabled && len(prefs.DeviceTokens) > 0 && d.pushProvider != nil {
		if err := d.pushProvider.SendPush(ctx, prefs.DeviceTokens, notif.Title, notif.Body, notif.Data); err != nil {
			log.Printf("processJob: Push failed for user %s: %v", notif.UserID, err)
			pushFailures.WithLabelValues(string(notif.Type)).Inc()
			d.markAsFailed(ctx, notif, err)
			return
		}
	}

	if err := d.repo.MarkSent(ctx, notif.ID, d.clock.Now()); err != nil {
		log.Printf("processJob: Failed to mark notification %s as sent: %v", notif.ID, err)
	}
}

// markAsFailed records the failure. High and urgent notifications are put
// back on the schedule until they exhaust their retries.
func (d *NotificationDispatcher) markAsFailed(ctx context.Context, notif *notification.Notification, cause error) {
	now := d.clock.Now()
	retries, err := d.repo.MarkFailed(ctx, notif.ID, cause.Error(), now)
	if err != nil {
		log.Printf("markAsFailed: Failed to mark notification %s as failed: %v", notif.ID, err)
		return
	}

	if retries >= maxPushRetries {
		return
	}
	if notif.Priority != notification.PriorityHigh && notif.Priority != notification.PriorityUrgent {
		return
	}

	retryAt := now.Add(pushRetryDelay)
	if err := d.repo.Reschedule(ctx, notif.ID, retryAt); err != nil {
		log.Printf("markAsFailed: Failed to reschedule notification %s: %v", notif.ID, err)
		return
	}
	log.Printf("markAsFailed: Scheduled retry %d for notification %s at %s", retries+1, notif.ID, retryAt.Format(time.RFC3339))
}

// ProcessDue queues pending notifications whose scheduled time has passed.
func (d *NotificationDispatcher) ProcessDue(ctx context.Context) {
	due, err := d.repo.ListDue(ctx, d.clock.Now(), dueBatchSize)
	if err != nil {
		log.Printf("ProcessDue: Failed to fetch scheduled notifications: %v", err)
		return
	}

	for _, notif := range due {
		prefs, err := d.repo.GetPreferences(ctx, notif.UserID)
		if err != nil {
			log.Printf("ProcessDue: Failed to get preferences for user %s: %v", notif.UserID, err)
			continue
		}
		if prefs == nil {
			prefs = notification.DefaultPreferences(notif.UserID, d.clock.Now())
		}
		d.Dispatch(notif, prefs)
	}

	if len(due) > 0 {
		log.Printf("ProcessDue: Queued %d scheduled notifications", len(due))
	}
}

// Cleanup deletes expired notifications and read ones past retention.
func (d *NotificationDispatcher) Cleanup(ctx context.Context) {
	now := d.clock.Now()
	n, err := d.repo.DeleteExpired(ctx, now, now.Add(-readRetention))
	if err != nil {
		log.Printf("Cleanup: Failed to cleanup notifications: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Cleanup: Removed %d notifications", n)
	}
}

// Stop halts the workers and tickers and waits for in-flight jobs.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}

// LogPushProvider only logs. main falls back to it when no FCM credentials
// are configured.
type LogPushProvider struct{}

func (LogPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	log.Printf("LogPushProvider: %d devices: %s - %s", len(tokens), title, body)
	return nil
}
