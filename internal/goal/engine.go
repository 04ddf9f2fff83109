package goal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karavan-app/karavan/internal/clock"
	"github.com/karavan-app/karavan/internal/model"
)

// Reward sizes in kilometers.
const (
	RewardDailyTask  = 10
	RewardCheckpoint = 50
	RewardFinal      = 500
)

type GoalStore interface {
	GetByID(id string) (*model.Goal, error)
	Save(g *model.Goal) error
}

type HistoryStore interface {
	Append(goalID string, e model.DailyTaskEntry) error
	CountByGoal(goalID string) (int, error)
}

type CurrencyLedger interface {
	Credit(userID int64, amount int) error
	Balance(userID int64) (int, error)
}

type StreakCounter interface {
	Increment(userID int64) error
	Current(userID int64) (int, error)
}

// Notifier schedules the "5 minutes left" warning for a daily task.
// Cancel must be idempotent: cancelling a schedule that does not exist is a
// no-op.
type Notifier interface {
	Schedule(userID int64, goalID, taskText string, fireAt time.Time) error
	Cancel(userID int64, goalID string) error
	SendNow(userID int64, text string) error
}

// Engine drives the checkpoint and daily-task state machines. All decisions
// are derived from the goal record and the injected clock; every mutation is
// committed with a single Save before side effects (rewards, streaks,
// notifications) run, so a failed side effect never leaves the record
// half-written.
type Engine struct {
	goals    GoalStore
	history  HistoryStore
	ledger   CurrencyLedger
	streaks  StreakCounter
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

func NewEngine(goals GoalStore, history HistoryStore, ledger CurrencyLedger, streaks StreakCounter, notifier Notifier, clk clock.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		goals:    goals,
		history:  history,
		ledger:   ledger,
		streaks:  streaks,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
	}
}

// Evaluate loads the goal, applies lazy time-driven transitions (challenge
// day reset, task-window expiry, notification arming) and returns the single
// pending decision. Repeated calls with no state change are idempotent: the
// warning notification is scheduled at most once per task window.
// Returns a nil goal when the id is unknown.
func (e *Engine) Evaluate(goalID string) (*model.Goal, Event, error) {
	g, err := e.goals.GetByID(goalID)
	if err != nil || g == nil {
		return nil, Event{Kind: EventNone}, err
	}

	now := e.clock.Now()
	if now.Before(g.StartDate) {
		// User clocks drift and get changed; clamp rather than fail.
		e.logger.Warn("clock behind goal start", "goal_id", g.ID, "start_date", g.StartDate, "now", now)
	}

	dirty := Normalize(g)

	if t := g.DailyTask; t != nil && !t.Completed && t.StartedAt.IsZero() {
		// Task created without a window start (older clients): open it now.
		t.StartedAt = now
		t.NotificationSent = false
		dirty = true
	}

	if e.resetChallengeTask(g, now) {
		dirty = true
	}

	ev, err := Evaluate(g, now)
	if err != nil {
		return g, Event{Kind: EventNone}, err
	}

	if ev.Kind == EventDailyTaskExpired {
		// Ran out of time unresolved: implicit skip, then look again.
		e.resolveDailyTask(g, now)
		if err := e.goals.Save(g); err != nil {
			return g, Event{Kind: EventNone}, fmt.Errorf("save goal: %w", err)
		}
		e.appendTaskHistory(g, false, nil, now)
		e.cancelNotification(g)
		ev, err = Evaluate(g, now)
		if err != nil {
			return g, Event{Kind: EventNone}, err
		}
		return g, ev, nil
	}

	if ev.Kind == EventDailyTaskExpiringSoon && !g.DailyTask.NotificationSent {
		g.DailyTask.NotificationSent = true
		dirty = true
		if err := e.goals.Save(g); err != nil {
			return g, Event{Kind: EventNone}, fmt.Errorf("save goal: %w", err)
		}
		dirty = false
		fireAt := g.DailyTask.StartedAt.Add(TaskWindow - SkipWindow)
		if err := e.notifier.Schedule(g.UserID, g.ID, g.DailyTask.Text, fireAt); err != nil {
			e.logger.Error("schedule task warning", "goal_id", g.ID, "error", err)
		}
	}

	if dirty {
		if err := e.goals.Save(g); err != nil {
			return g, Event{Kind: EventNone}, fmt.Errorf("save goal: %w", err)
		}
	}
	return g, ev, nil
}

// resetChallengeTask reopens a challenge's fixed task when a new calendar
// day is observed. Lazy: runs on access, not on a timer.
func (e *Engine) resetChallengeTask(g *model.Goal, now time.Time) bool {
	t := g.DailyTask
	if !g.IsChallenge || t == nil || !t.Completed {
		return false
	}
	if g.LastTaskCompletedDate == now.Format("2006-01-02") {
		return false
	}
	t.Completed = false
	t.StartedAt = now
	t.NotificationSent = false
	return true
}

// ConfirmCheckpoint marks checkpoint index confirmed, recomputes progress,
// credits the checkpoint reward and returns the next pending event (the
// following checkpoint may already be unlocked).
func (e *Engine) ConfirmCheckpoint(goalID string, index int) (*model.Goal, Event, error) {
	return e.resolveCheckpoint(goalID, index, model.CheckpointCompleted)
}

// SkipCheckpoint resolves checkpoint index without credit. Skipped
// checkpoints never count toward progress.
func (e *Engine) SkipCheckpoint(goalID string, index int) (*model.Goal, Event, error) {
	return e.resolveCheckpoint(goalID, index, model.CheckpointSkipped)
}

func (e *Engine) resolveCheckpoint(goalID string, index int, state model.CheckpointState) (*model.Goal, Event, error) {
	g, err := e.goals.GetByID(goalID)
	if err != nil || g == nil {
		return nil, Event{Kind: EventNone}, err
	}
	if g.Completed {
		return g, Event{Kind: EventNone}, fmt.Errorf("%w: goal is completed", ErrInvalidTransition)
	}
	Normalize(g)
	if index < 0 || index >= len(g.Checkpoints) {
		return g, Event{Kind: EventNone}, fmt.Errorf("%w: checkpoint %d out of range", ErrInvalidTransition, index)
	}
	if index != firstUnset(g.CheckpointStates) {
		// Only the earliest unresolved checkpoint may be acted on.
		return g, Event{Kind: EventNone}, fmt.Errorf("%w: checkpoint %d is not pending", ErrInvalidTransition, index)
	}
	thresholds, err := Thresholds(g)
	if err != nil {
		return g, Event{Kind: EventNone}, err
	}
	if DaysSinceStart(g, e.clock.Now()) < thresholds[index] {
		// The clock decides when a checkpoint opens, not the client.
		return g, Event{Kind: EventNone}, fmt.Errorf("%w: checkpoint %d is not unlocked yet", ErrInvalidTransition, index)
	}

	g.CheckpointStates[index] = state
	g.Progress = Percent(g.CompletedCheckpointCount(), len(g.Checkpoints))
	if err := e.goals.Save(g); err != nil {
		return g, Event{Kind: EventNone}, fmt.Errorf("save goal: %w", err)
	}

	if state == model.CheckpointCompleted {
		if err := e.ledger.Credit(g.UserID, RewardCheckpoint); err != nil {
			e.logger.Error("credit checkpoint reward", "goal_id", g.ID, "user_id", g.UserID, "error", err)
		}
	}

	ev, err := Evaluate(g, e.clock.Now())
	if err != nil {
		return g, Event{Kind: EventNone}, err
	}
	return g, ev, nil
}

func firstUnset(states []model.CheckpointState) int {
	for i, s := range states {
		if s == model.CheckpointUnset {
			return i
		}
	}
	return -1
}

// ConfirmFinal completes the goal: progress jumps to exactly 100, the big
// completion reward is credited, and the record becomes terminal.
func (e *Engine) ConfirmFinal(goalID string) (*model.Goal, error) {
	g, err := e.goals.GetByID(goalID)
	if err != nil || g == nil {
		return nil, err
	}
	if g.Completed {
		return g, fmt.Errorf("%w: goal is already completed", ErrInvalidTransition)
	}
	Normalize(g)
	if !g.AllCheckpointsResolved() {
		return g, fmt.Errorf("%w: checkpoints remain unresolved", ErrInvalidTransition)
	}

	g.Progress = 100
	g.Completed = true
	if err := e.goals.Save(g); err != nil {
		return g, fmt.Errorf("save goal: %w", err)
	}
	if err := e.ledger.Credit(g.UserID, RewardFinal); err != nil {
		e.logger.Error("credit final reward", "goal_id", g.ID, "user_id", g.UserID, "error", err)
	}
	e.cancelNotification(g)
	return g, nil
}

// DeclineFinal leaves the goal open at its current progress. Nothing is
// persisted; the final offer simply returns on the next evaluation.
func (e *Engine) DeclineFinal(goalID string) (*model.Goal, error) {
	g, err := e.goals.GetByID(goalID)
	if err != nil || g == nil {
		return nil, err
	}
	if g.Completed {
		return g, fmt.Errorf("%w: goal is already completed", ErrInvalidTransition)
	}
	Normalize(g)
	if !g.AllCheckpointsResolved() {
		return g, fmt.Errorf("%w: final confirmation is not pending", ErrInvalidTransition)
	}
	return g, nil
}

// CompleteDailyTask resolves the active task as done: history entry, task
// reward, streak increment, warning cancelled. For challenges the same text
// reopens on the next calendar day; ordinary goals wait for IssueDailyTask.
func (e *Engine) CompleteDailyTask(goalID string) (*model.Goal, Event, error) {
	g, t, err := e.loadActiveTask(goalID)
	if err != nil || g == nil {
		return g, Event{Kind: EventNone}, err
	}

	now := e.clock.Now()
	if TaskRemaining(t, now) <= 0 {
		return g, Event{Kind: EventNone}, fmt.Errorf("%w: task window has expired", ErrInvalidTransition)
	}

	completedAt := now
	e.resolveDailyTask(g, now)
	if err := e.goals.Save(g); err != nil {
		return g, Event{Kind: EventNone}, fmt.Errorf("save goal: %w", err)
	}

	e.appendTaskHistory(g, true, &completedAt, now)
	if err := e.ledger.Credit(g.UserID, RewardDailyTask); err != nil {
		e.logger.Error("credit task reward", "goal_id", g.ID, "user_id", g.UserID, "error", err)
	}
	if err := e.streaks.Increment(g.UserID); err != nil {
		e.logger.Error("increment streak", "goal_id", g.ID, "user_id", g.UserID, "error", err)
	}
	e.cancelNotification(g)

	ev, err := Evaluate(g, now)
	if err != nil {
		return g, Event{Kind: EventNone}, err
	}
	return g, ev, nil
}

// SkipDailyTask resolves the active task as not done. Only allowed in the
// last five minutes of the window; no reward, no streak.
func (e *Engine) SkipDailyTask(goalID string) (*model.Goal, Event, error) {
	g, t, err := e.loadActiveTask(goalID)
	if err != nil || g == nil {
		return g, Event{Kind: EventNone}, err
	}

	now := e.clock.Now()
	if TaskRemaining(t, now) > SkipWindow {
		return g, Event{Kind: EventNone}, ErrSkipTooEarly
	}

	e.resolveDailyTask(g, now)
	if err := e.goals.Save(g); err != nil {
		return g, Event{Kind: EventNone}, fmt.Errorf("save goal: %w", err)
	}

	e.appendTaskHistory(g, false, nil, now)
	e.cancelNotification(g)

	ev, err := Evaluate(g, now)
	if err != nil {
		return g, Event{Kind: EventNone}, err
	}
	return g, ev, nil
}

// IssueDailyTask starts a fresh 24-hour task for an ordinary goal. The task
// number continues from the resolved-task history.
func (e *Engine) IssueDailyTask(goalID, text string) (*model.Goal, error) {
	g, err := e.goals.GetByID(goalID)
	if err != nil || g == nil {
		return nil, err
	}
	if g.Completed {
		return g, fmt.Errorf("%w: goal is completed", ErrInvalidTransition)
	}
	if g.IsChallenge {
		return g, fmt.Errorf("%w: a challenge's task never changes", ErrInvalidTransition)
	}
	if SubstitutesDailyTask(g) {
		return g, fmt.Errorf("%w: daily checkpoints stand in for the task", ErrInvalidTransition)
	}
	if t := g.DailyTask; t != nil && !t.Completed {
		return g, fmt.Errorf("%w: a task is already active", ErrInvalidTransition)
	}
	if text == "" {
		return g, fmt.Errorf("%w: task text is empty", ErrInvalidTransition)
	}

	count, err := e.history.CountByGoal(g.ID)
	if err != nil {
		return g, fmt.Errorf("count task history: %w", err)
	}

	g.DailyTask = &model.DailyTask{
		Text:      text,
		StartedAt: e.clock.Now(),
		Number:    count + 1,
	}
	if err := e.goals.Save(g); err != nil {
		return g, fmt.Errorf("save goal: %w", err)
	}
	return g, nil
}

func (e *Engine) loadActiveTask(goalID string) (*model.Goal, *model.DailyTask, error) {
	g, err := e.goals.GetByID(goalID)
	if err != nil || g == nil {
		return g, nil, err
	}
	if g.Completed {
		return g, nil, fmt.Errorf("%w: goal is completed", ErrInvalidTransition)
	}
	if SubstitutesDailyTask(g) {
		return g, nil, fmt.Errorf("%w: daily checkpoints stand in for the task", ErrInvalidTransition)
	}
	t := g.DailyTask
	if t == nil || t.Completed {
		return g, nil, ErrNoDailyTask
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = e.clock.Now()
	}
	return g, t, nil
}

// resolveDailyTask flips the in-memory task state; callers persist and then
// record history. For challenges the resolution date is stamped so the lazy
// next-day reset knows when to reopen the task.
func (e *Engine) resolveDailyTask(g *model.Goal, now time.Time) {
	g.DailyTask.Completed = true
	if g.IsChallenge {
		g.LastTaskCompletedDate = now.Format("2006-01-02")
	}
}

func (e *Engine) appendTaskHistory(g *model.Goal, completed bool, completedAt *time.Time, now time.Time) {
	t := g.DailyTask
	entry := model.DailyTaskEntry{
		GoalID:      g.ID,
		TaskText:    t.Text,
		Completed:   completed,
		Number:      t.Number,
		Date:        now.Format("2006-01-02"),
		StartedAt:   t.StartedAt,
		CompletedAt: completedAt,
	}
	if err := e.history.Append(g.ID, entry); err != nil {
		e.logger.Error("append task history", "goal_id", g.ID, "error", err)
	}
}

func (e *Engine) cancelNotification(g *model.Goal) {
	if err := e.notifier.Cancel(g.UserID, g.ID); err != nil {
		e.logger.Error("cancel task warning", "goal_id", g.ID, "error", err)
	}
}
