package model

import "time"

// Caravan is a shared goal: one goal record mutated by any member.
type Caravan struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	Title     string    `json:"title"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type CaravanMember struct {
	CaravanID string    `json:"caravan_id"`
	UserID    int64     `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}
