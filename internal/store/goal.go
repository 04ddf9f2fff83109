package store

import (
	"database/sql"
	"fmt"

	"github.com/karavan-app/karavan/internal/model"
)

type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

const goalCols = `id, user_id, title, description, start_date, deadline_type, period, deadline_date,
	progress, completed, is_challenge, is_caravan, caravan_id,
	daily_task_text, daily_task_started_at, daily_task_completed, daily_task_number,
	notification_sent, last_task_completed_date, created_at, updated_at`

func scanGoal(scanner interface{ Scan(...any) error }) (*model.Goal, error) {
	var g model.Goal
	var deadlineDate sql.NullTime
	var taskText string
	var taskStarted sql.NullTime
	var taskCompleted bool
	var taskNumber int
	var notificationSent bool

	err := scanner.Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &g.StartDate, &g.DeadlineType, &g.Period, &deadlineDate,
		&g.Progress, &g.Completed, &g.IsChallenge, &g.IsCaravan, &g.CaravanID,
		&taskText, &taskStarted, &taskCompleted, &taskNumber,
		&notificationSent, &g.LastTaskCompletedDate, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deadlineDate.Valid {
		d := deadlineDate.Time
		g.DeadlineDate = &d
	}
	if taskText != "" {
		g.DailyTask = &model.DailyTask{
			Text:             taskText,
			Completed:        taskCompleted,
			Number:           taskNumber,
			NotificationSent: notificationSent,
		}
		if taskStarted.Valid {
			g.DailyTask.StartedAt = taskStarted.Time
		}
	}
	return &g, nil
}

// Create inserts the goal and its checkpoint rows in one transaction.
func (s *GoalStore) Create(g *model.Goal) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var deadlineDate sql.NullTime
	if g.DeadlineDate != nil {
		deadlineDate = sql.NullTime{Time: *g.DeadlineDate, Valid: true}
	}
	taskText, taskStarted, taskCompleted, taskNumber, notificationSent := taskColumns(g.DailyTask)

	_, err = tx.Exec(
		`INSERT INTO goals (id, user_id, title, description, start_date, deadline_type, period, deadline_date,
			progress, completed, is_challenge, is_caravan, caravan_id,
			daily_task_text, daily_task_started_at, daily_task_completed, daily_task_number,
			notification_sent, last_task_completed_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, g.Description, g.StartDate.UTC(), g.DeadlineType, g.Period, deadlineDate,
		g.Progress, g.Completed, g.IsChallenge, g.IsCaravan, g.CaravanID,
		taskText, taskStarted, taskCompleted, taskNumber,
		notificationSent, g.LastTaskCompletedDate,
	)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}

	for i, cp := range g.Checkpoints {
		state := model.CheckpointUnset
		if i < len(g.CheckpointStates) {
			state = g.CheckpointStates[i]
		}
		if _, err := tx.Exec(
			`INSERT INTO checkpoints (goal_id, position, label, description, state) VALUES (?, ?, ?, ?, ?)`,
			g.ID, i, cp.Label, cp.Description, state,
		); err != nil {
			return fmt.Errorf("insert checkpoint: %w", err)
		}
	}

	return tx.Commit()
}

func (s *GoalStore) GetByID(id string) (*model.Goal, error) {
	row := s.db.QueryRow(`SELECT `+goalCols+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if err := s.loadCheckpoints(g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GoalStore) ListByUser(userID int64) ([]model.Goal, error) {
	rows, err := s.db.Query(`SELECT `+goalCols+` FROM goals WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range goals {
		if err := s.loadCheckpoints(&goals[i]); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

// Save commits the goal's mutable state (progress, completion, daily task,
// checkpoint states) in one transaction. Checkpoint labels are fixed at
// creation and are not touched.
func (s *GoalStore) Save(g *model.Goal) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	taskText, taskStarted, taskCompleted, taskNumber, notificationSent := taskColumns(g.DailyTask)

	_, err = tx.Exec(
		`UPDATE goals SET title = ?, description = ?, progress = ?, completed = ?,
			daily_task_text = ?, daily_task_started_at = ?, daily_task_completed = ?, daily_task_number = ?,
			notification_sent = ?, last_task_completed_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		g.Title, g.Description, g.Progress, g.Completed,
		taskText, taskStarted, taskCompleted, taskNumber,
		notificationSent, g.LastTaskCompletedDate,
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}

	for i, state := range g.CheckpointStates {
		if _, err := tx.Exec(
			`UPDATE checkpoints SET state = ? WHERE goal_id = ? AND position = ?`,
			state, g.ID, i,
		); err != nil {
			return fmt.Errorf("update checkpoint state: %w", err)
		}
	}

	return tx.Commit()
}

func (s *GoalStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

func (s *GoalStore) loadCheckpoints(g *model.Goal) error {
	rows, err := s.db.Query(
		`SELECT label, description, state FROM checkpoints WHERE goal_id = ? ORDER BY position ASC`,
		g.ID,
	)
	if err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	g.Checkpoints = nil
	g.CheckpointStates = nil
	for rows.Next() {
		var cp model.Checkpoint
		var state model.CheckpointState
		if err := rows.Scan(&cp.Label, &cp.Description, &state); err != nil {
			return fmt.Errorf("scan checkpoint: %w", err)
		}
		g.Checkpoints = append(g.Checkpoints, cp)
		g.CheckpointStates = append(g.CheckpointStates, state)
	}
	return rows.Err()
}

func taskColumns(t *model.DailyTask) (text string, started sql.NullTime, completed bool, number int, notified bool) {
	if t == nil {
		return "", sql.NullTime{}, false, 0, false
	}
	started = sql.NullTime{}
	if !t.StartedAt.IsZero() {
		started = sql.NullTime{Time: t.StartedAt.UTC(), Valid: true}
	}
	return t.Text, started, t.Completed, t.Number, t.NotificationSent
}
