package model

import "time"

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduledNotification is a deferred "5 minutes left" warning for a daily
// task, delivered by the notify scheduler sweep.
type ScheduledNotification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	GoalID    string    `json:"goal_id"`
	TaskText  string    `json:"task_text"`
	FireAt    time.Time `json:"fire_at"`
	Sent      bool      `json:"sent"`
	CreatedAt time.Time `json:"created_at"`
}
