package model

import "time"

type DeadlineType string

const (
	DeadlinePeriod DeadlineType = "period"
	DeadlineDate   DeadlineType = "date"
)

// Period names accepted for period-type deadlines. The checkpoint count a
// goal was created with is derived from the period (see goal.Thresholds).
const (
	PeriodWeek       = "1 week"
	PeriodMonth      = "1 month"
	PeriodThreeMonth = "3 months"
	PeriodSixMonth   = "6 months"
	PeriodYear       = "1 year"
	PeriodFiveYears  = "5 years"
)

type CheckpointState string

const (
	CheckpointUnset     CheckpointState = "unset"
	CheckpointCompleted CheckpointState = "completed"
	CheckpointSkipped   CheckpointState = "skipped"
)

// Resolved reports whether the checkpoint has been confirmed or skipped.
func (s CheckpointState) Resolved() bool {
	return s == CheckpointCompleted || s == CheckpointSkipped
}

// Checkpoint is a milestone on the route, fixed at goal creation.
type Checkpoint struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// DailyTask is the single active recurring task of a goal. Its window is
// 24 hours from StartedAt; skipping is only allowed in the final 5 minutes.
type DailyTask struct {
	Text             string    `json:"text"`
	StartedAt        time.Time `json:"started_at"`
	Completed        bool      `json:"completed"`
	Number           int       `json:"number"`
	NotificationSent bool      `json:"notification_sent"`
}

type Goal struct {
	ID           string       `json:"id"`
	UserID       int64        `json:"user_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	StartDate    time.Time    `json:"start_date"`
	DeadlineType DeadlineType `json:"deadline_type"`
	Period       string       `json:"period,omitempty"`
	DeadlineDate *time.Time   `json:"deadline_date,omitempty"`

	Checkpoints      []Checkpoint      `json:"checkpoints"`
	CheckpointStates []CheckpointState `json:"completed_checkpoints"`

	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`

	DailyTask *DailyTask `json:"daily_task,omitempty"`
	// LastTaskCompletedDate is the calendar day (YYYY-MM-DD) a challenge's
	// task was last resolved; used for the lazy next-day reset.
	LastTaskCompletedDate string `json:"last_task_completed_date,omitempty"`

	IsChallenge bool   `json:"is_challenge"`
	IsCaravan   bool   `json:"is_caravan"`
	CaravanID   string `json:"caravan_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompletedCheckpointCount counts confirmed checkpoints. Skipped ones do not
// count toward progress.
func (g *Goal) CompletedCheckpointCount() int {
	n := 0
	for _, s := range g.CheckpointStates {
		if s == CheckpointCompleted {
			n++
		}
	}
	return n
}

// AllCheckpointsResolved reports whether every checkpoint has been confirmed
// or skipped. False for goals without checkpoints.
func (g *Goal) AllCheckpointsResolved() bool {
	if len(g.Checkpoints) == 0 {
		return false
	}
	if len(g.CheckpointStates) < len(g.Checkpoints) {
		return false
	}
	for _, s := range g.CheckpointStates {
		if !s.Resolved() {
			return false
		}
	}
	return true
}

// DailyTaskEntry is one row of a goal's append-only daily-task history.
// An entry is recorded every time a task is resolved: completed, skipped,
// or expired unresolved.
type DailyTaskEntry struct {
	ID          int64      `json:"id"`
	GoalID      string     `json:"goal_id"`
	TaskText    string     `json:"task_text"`
	Completed   bool       `json:"completed"`
	Number      int        `json:"number"`
	Date        string     `json:"date"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
