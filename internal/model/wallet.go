package model

import "time"

// Wallet is a per-user kilometer balance, credited by checkpoint and
// daily-task rewards across all of the user's goals.
type Wallet struct {
	UserID    int64     `json:"user_id"`
	Balance   int       `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Streak counts consecutive daily-task completions. Skips do not increment it.
type Streak struct {
	UserID    int64     `json:"user_id"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}
