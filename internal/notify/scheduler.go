package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karavan-app/karavan/internal/clock"
	"github.com/karavan-app/karavan/internal/store"

	"github.com/sethvargo/go-retry"
)

// Scheduler drains the durable notification queue: every minute it picks up
// task-expiry warnings whose fire time has passed and pushes them to the
// user's subscriptions. Scheduling and cancelling go straight to the store,
// so warnings survive restarts.
type Scheduler struct {
	mu            sync.RWMutex
	service       *Service
	notifications *store.NotificationStore
	subscriptions *store.PushStore
	clock         clock.Clock
	logger        *slog.Logger
	interval      time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
}

func NewScheduler(svc *Service, notifications *store.NotificationStore, subscriptions *store.PushStore, clk clock.Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:       svc,
		notifications: notifications,
		subscriptions: subscriptions,
		clock:         clk,
		logger:        logger.With("component", "notify"),
		interval:      60 * time.Second,
	}
}

// Schedule queues a "5 minutes left" warning for a daily task. Any pending
// warning for the same goal is replaced.
func (s *Scheduler) Schedule(userID int64, goalID, taskText string, fireAt time.Time) error {
	return s.notifications.Schedule(userID, goalID, taskText, fireAt)
}

// Cancel drops a queued warning. Idempotent: cancelling a warning that never
// existed or was already delivered is a no-op.
func (s *Scheduler) Cancel(userID int64, goalID string) error {
	return s.notifications.Cancel(userID, goalID)
}

// SendNow pushes a message to all of the user's subscriptions immediately,
// bypassing the queue.
func (s *Scheduler) SendNow(userID int64, text string) error {
	return s.deliver(context.Background(), userID, Payload{
		Title: "Karavan",
		Body:  text,
		Tag:   "karavan",
	})
}

// Start begins the delivery loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the delivery loop.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.notifications.ListDue(s.clock.Now())
	if err != nil {
		s.logger.Error("list due notifications", "error", err)
		return
	}

	for _, n := range due {
		payload := Payload{
			Title: "Task running out",
			Body:  fmt.Sprintf("%q expires in 5 minutes. Finish it or skip it.", n.TaskText),
			URL:   "/goals/" + n.GoalID,
			Tag:   "task-expiry-" + n.GoalID,
		}
		if err := s.deliver(ctx, n.UserID, payload); err != nil {
			s.logger.Error("deliver task warning", "user_id", n.UserID, "goal_id", n.GoalID, "error", err)
		}
		// Marked sent even when delivery failed: the warning is only useful
		// inside the 5-minute window, so there is no point retrying it on
		// the next tick.
		if err := s.notifications.MarkSent(n.ID); err != nil {
			s.logger.Error("mark notification sent", "id", n.ID, "error", err)
		}
	}
}

// deliver pushes the payload to every subscription the user has, retrying
// transient failures with backoff. Expired subscriptions are pruned.
func (s *Scheduler) deliver(ctx context.Context, userID int64, payload Payload) error {
	subs, err := s.subscriptions.ListByUser(userID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	var lastErr error
	for i := range subs {
		sub := subs[i]
		backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := s.service.Send(&sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					return err
				}
				return retry.RetryableError(err)
			}
			return nil
		})
		if errors.Is(err, ErrExpired) {
			if err := s.subscriptions.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("prune expired subscription", "endpoint", sub.Endpoint, "error", err)
			}
			continue
		}
		if err != nil {
			lastErr = err
		}
	}
	return lastErr
}
