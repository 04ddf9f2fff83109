package store

import (
	"database/sql"
	"fmt"

	"github.com/karavan-app/karavan/internal/model"
)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(goalID string, e model.DailyTaskEntry) error {
	var completedAt sql.NullTime
	if e.CompletedAt != nil {
		completedAt = sql.NullTime{Time: e.CompletedAt.UTC(), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO daily_task_history (goal_id, task_text, completed, number, date, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		goalID, e.TaskText, e.Completed, e.Number, e.Date, e.StartedAt.UTC(), completedAt,
	)
	if err != nil {
		return fmt.Errorf("append task history: %w", err)
	}
	return nil
}

func (s *HistoryStore) ListByGoal(goalID string) ([]model.DailyTaskEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, goal_id, task_text, completed, number, date, started_at, completed_at
		 FROM daily_task_history WHERE goal_id = ? ORDER BY id ASC`,
		goalID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	var entries []model.DailyTaskEntry
	for rows.Next() {
		var e model.DailyTaskEntry
		var completedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.GoalID, &e.TaskText, &e.Completed, &e.Number, &e.Date, &e.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task history: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *HistoryStore) CountByGoal(goalID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_task_history WHERE goal_id = ?`, goalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count task history: %w", err)
	}
	return n, nil
}
