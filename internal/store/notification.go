package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/karavan-app/karavan/internal/model"
)

// NotificationStore holds pending task-expiry warnings for the delivery
// loop. At most one unsent notification exists per (user, goal) pair.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Schedule replaces any unsent notification for the pair, so rescheduling
// the same task moves the fire time instead of duplicating it.
func (s *NotificationStore) Schedule(userID int64, goalID, taskText string, fireAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM scheduled_notifications WHERE user_id = ? AND goal_id = ? AND sent = 0`,
		userID, goalID,
	)
	if err != nil {
		return fmt.Errorf("clear pending notification: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO scheduled_notifications (user_id, goal_id, task_text, fire_at) VALUES (?, ?, ?, ?)`,
		userID, goalID, taskText, fireAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("schedule notification: %w", err)
	}
	return tx.Commit()
}

// Cancel drops any unsent notification for the pair. Cancelling when none
// exists is a no-op.
func (s *NotificationStore) Cancel(userID int64, goalID string) error {
	_, err := s.db.Exec(
		`DELETE FROM scheduled_notifications WHERE user_id = ? AND goal_id = ? AND sent = 0`,
		userID, goalID,
	)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListDue(now time.Time) ([]model.ScheduledNotification, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, goal_id, task_text, fire_at, sent, created_at
		 FROM scheduled_notifications WHERE sent = 0 AND fire_at <= ? ORDER BY fire_at ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	defer rows.Close()

	var due []model.ScheduledNotification
	for rows.Next() {
		var n model.ScheduledNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.GoalID, &n.TaskText, &n.FireAt, &n.Sent, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		due = append(due, n)
	}
	return due, rows.Err()
}

func (s *NotificationStore) MarkSent(id int64) error {
	_, err := s.db.Exec(`UPDATE scheduled_notifications SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}
