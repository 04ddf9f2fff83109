package goal

import (
	"time"

	"github.com/karavan-app/karavan/internal/model"
)

// TaskWindow is the lifetime of a daily task, and SkipWindow the tail of it
// during which the user may skip instead of complete.
const (
	TaskWindow = 24 * time.Hour
	SkipWindow = 5 * time.Minute
)

type EventKind string

const (
	EventNone                     EventKind = "none"
	EventCheckpointPending        EventKind = "checkpoint_pending"
	EventFinalConfirmationPending EventKind = "final_confirmation_pending"
	EventDailyTaskExpiringSoon    EventKind = "daily_task_expiring_soon"
	// EventDailyTaskExpired means the active task ran out of time without
	// being resolved. The engine forces an implicit skip when it sees this;
	// it is never surfaced to callers.
	EventDailyTaskExpired EventKind = "daily_task_expired"
)

// Event is the single pending decision for a goal at a point in time.
type Event struct {
	Kind            EventKind         `json:"kind"`
	CheckpointIndex int               `json:"checkpoint_index,omitempty"`
	Checkpoint      *model.Checkpoint `json:"checkpoint,omitempty"`
	Remaining       time.Duration     `json:"remaining,omitempty"`
}

func none() Event { return Event{Kind: EventNone} }

// Normalize backfills a missing or short checkpoint-state array with unset
// entries. Stored goals from older clients may lack the array entirely; the
// recovery policy is to treat everything unaccounted for as unresolved. It
// reports whether the goal was modified.
func Normalize(g *model.Goal) bool {
	if len(g.CheckpointStates) >= len(g.Checkpoints) {
		return false
	}
	for len(g.CheckpointStates) < len(g.Checkpoints) {
		g.CheckpointStates = append(g.CheckpointStates, model.CheckpointUnset)
	}
	return true
}

// SubstitutesDailyTask reports whether the goal's checkpoints already run at
// daily cadence, in which case they stand in for the recurring task and the
// daily-task lifecycle is inert. Challenges are never substituted.
func SubstitutesDailyTask(g *model.Goal) bool {
	if g.IsChallenge || len(g.Checkpoints) == 0 {
		return false
	}
	switch g.DeadlineType {
	case model.DeadlinePeriod:
		return g.Period == model.PeriodWeek && len(g.Checkpoints) == 7
	case model.DeadlineDate:
		if g.DeadlineDate == nil {
			return false
		}
		total := daysBetween(g.StartDate, *g.DeadlineDate)
		return total <= 7 && len(g.Checkpoints) == total
	}
	return false
}

// TaskRemaining returns how much of the daily task's 24-hour window is left.
// Negative means expired.
func TaskRemaining(t *model.DailyTask, now time.Time) time.Duration {
	return t.StartedAt.Add(TaskWindow).Sub(now)
}

// Evaluate computes the single pending decision for a goal at time now. It
// is pure: no side effects, no hidden clock, and calling it repeatedly with
// unchanged state yields the same answer. Checkpoints are examined in order
// and only the earliest unresolved one can be pending.
func Evaluate(g *model.Goal, now time.Time) (Event, error) {
	if g.Completed {
		return none(), nil
	}
	Normalize(g)

	if len(g.Checkpoints) > 0 {
		if g.AllCheckpointsResolved() {
			// Declining final confirmation is not terminal: the offer comes
			// back on every evaluation until the user accepts.
			return Event{Kind: EventFinalConfirmationPending}, nil
		}

		thresholds, err := Thresholds(g)
		if err != nil {
			return none(), err
		}
		days := DaysSinceStart(g, now)
		for i, s := range g.CheckpointStates {
			if s != model.CheckpointUnset {
				continue
			}
			if days >= thresholds[i] {
				cp := g.Checkpoints[i]
				return Event{Kind: EventCheckpointPending, CheckpointIndex: i, Checkpoint: &cp}, nil
			}
			break
		}
	}

	if SubstitutesDailyTask(g) {
		return none(), nil
	}

	if t := g.DailyTask; t != nil && !t.Completed && !t.StartedAt.IsZero() {
		remaining := TaskRemaining(t, now)
		if remaining <= 0 {
			return Event{Kind: EventDailyTaskExpired}, nil
		}
		if remaining <= SkipWindow {
			return Event{Kind: EventDailyTaskExpiringSoon, Remaining: remaining}, nil
		}
	}

	return none(), nil
}
