package store

import (
	"database/sql"
	"fmt"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

func (s *StreakStore) Increment(userID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO streaks (user_id, count) VALUES (?, 1)
		 ON CONFLICT(user_id) DO UPDATE SET count = count + 1, updated_at = CURRENT_TIMESTAMP`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("increment streak: %w", err)
	}
	return nil
}

func (s *StreakStore) Current(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT count FROM streaks WHERE user_id = ?`, userID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get streak: %w", err)
	}
	return count, nil
}
