package goal

import (
	"testing"
	"time"

	"github.com/karavan-app/karavan/internal/model"
)

func at(g *model.Goal, days int) time.Time {
	return g.StartDate.AddDate(0, 0, days).Add(time.Hour)
}

func TestEvaluateCompletedGoalIsInert(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	g.Completed = true

	ev, err := Evaluate(g, at(g, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Kind != EventNone {
		t.Errorf("kind = %q, want none", ev.Kind)
	}
}

func TestEvaluateCheckpointUnlocking(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4) // thresholds 7, 14, 21, 28

	// Day 3: nothing unlocked.
	ev, err := Evaluate(g, at(g, 3))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Kind != EventNone {
		t.Errorf("day 3 kind = %q, want none", ev.Kind)
	}

	// Day 7: first checkpoint exactly at threshold.
	ev, _ = Evaluate(g, at(g, 7))
	if ev.Kind != EventCheckpointPending {
		t.Fatalf("day 7 kind = %q, want checkpoint_pending", ev.Kind)
	}
	if ev.CheckpointIndex != 0 {
		t.Errorf("index = %d, want 0", ev.CheckpointIndex)
	}
	if ev.Checkpoint == nil {
		t.Error("expected checkpoint payload")
	}

	// Day 10, first still unresolved: still checkpoint 0, never 1.
	ev, _ = Evaluate(g, at(g, 10))
	if ev.Kind != EventCheckpointPending || ev.CheckpointIndex != 0 {
		t.Errorf("day 10 = %q/%d, want checkpoint_pending/0", ev.Kind, ev.CheckpointIndex)
	}

	// Resolve the first; day 10 is still before threshold 14.
	g.CheckpointStates[0] = model.CheckpointCompleted
	ev, _ = Evaluate(g, at(g, 10))
	if ev.Kind != EventNone {
		t.Errorf("day 10 after confirm = %q, want none", ev.Kind)
	}

	// Day 30: second unlocked. Only the earliest unresolved is offered even
	// though thresholds 21 and 28 have also passed.
	ev, _ = Evaluate(g, at(g, 30))
	if ev.Kind != EventCheckpointPending || ev.CheckpointIndex != 1 {
		t.Errorf("day 30 = %q/%d, want checkpoint_pending/1", ev.Kind, ev.CheckpointIndex)
	}
}

func TestEvaluateSkippedCountsAsResolved(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	g.CheckpointStates[0] = model.CheckpointSkipped

	ev, _ := Evaluate(g, at(g, 14))
	if ev.Kind != EventCheckpointPending || ev.CheckpointIndex != 1 {
		t.Errorf("kind/index = %q/%d, want checkpoint_pending/1", ev.Kind, ev.CheckpointIndex)
	}
}

func TestEvaluateFinalConfirmation(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	for i := range g.CheckpointStates {
		g.CheckpointStates[i] = model.CheckpointCompleted
	}
	g.CheckpointStates[2] = model.CheckpointSkipped

	ev, _ := Evaluate(g, at(g, 14))
	if ev.Kind != EventFinalConfirmationPending {
		t.Fatalf("kind = %q, want final_confirmation_pending", ev.Kind)
	}

	// Declining persists nothing, so the offer comes back every time.
	ev, _ = Evaluate(g, at(g, 15))
	if ev.Kind != EventFinalConfirmationPending {
		t.Errorf("re-evaluate kind = %q, want final_confirmation_pending again", ev.Kind)
	}
}

func TestEvaluateNoFinalForZeroCheckpoints(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 0)
	g.IsChallenge = true

	ev, _ := Evaluate(g, at(g, 400))
	if ev.Kind != EventNone {
		t.Errorf("kind = %q, want none for checkpoint-less goal", ev.Kind)
	}
}

func TestNormalizeBackfillsStates(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	g.CheckpointStates = g.CheckpointStates[:1]

	if !Normalize(g) {
		t.Fatal("expected Normalize to report a change")
	}
	if len(g.CheckpointStates) != 4 {
		t.Fatalf("states = %d, want 4", len(g.CheckpointStates))
	}
	for _, s := range g.CheckpointStates[1:] {
		if s != model.CheckpointUnset {
			t.Errorf("backfilled state = %q, want unset", s)
		}
	}
	if Normalize(g) {
		t.Error("second Normalize should be a no-op")
	}
}

func TestSubstitutesDailyTask(t *testing.T) {
	week := makeGoal(model.PeriodWeek, 7)
	if !SubstitutesDailyTask(week) {
		t.Error("week goal with 7 checkpoints should substitute")
	}

	month := makeGoal(model.PeriodMonth, 4)
	if SubstitutesDailyTask(month) {
		t.Error("month goal should not substitute")
	}

	challenge := makeGoal(model.PeriodWeek, 7)
	challenge.IsChallenge = true
	if SubstitutesDailyTask(challenge) {
		t.Error("challenges never substitute")
	}

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	short := makeDateGoal(start, 5, 5)
	if !SubstitutesDailyTask(short) {
		t.Error("5-day date goal with daily checkpoints should substitute")
	}
	long := makeDateGoal(start, 10, 2)
	if SubstitutesDailyTask(long) {
		t.Error("10-day date goal should not substitute")
	}
}

func TestEvaluateSubstitutedGoalIgnoresTask(t *testing.T) {
	g := makeGoal(model.PeriodWeek, 7)
	g.CheckpointStates[0] = model.CheckpointCompleted
	g.DailyTask = &model.DailyTask{
		Text:      "leftover task",
		StartedAt: g.StartDate,
		Number:    1,
	}

	// Day 1 with checkpoint 0 resolved: no checkpoint pending, and the
	// expired task is inert because daily checkpoints stand in for it.
	ev, _ := Evaluate(g, g.StartDate.Add(25*time.Hour))
	if ev.Kind != EventNone {
		t.Errorf("kind = %q, want none (substituted task ignored)", ev.Kind)
	}
}

func TestEvaluateTaskWindow(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	started := g.StartDate.Add(2 * time.Hour)
	g.DailyTask = &model.DailyTask{Text: "walk", StartedAt: started, Number: 1}

	// Mid-window: nothing.
	ev, _ := Evaluate(g, started.Add(12*time.Hour))
	if ev.Kind != EventNone {
		t.Errorf("mid-window kind = %q, want none", ev.Kind)
	}

	// Exactly 5 minutes left: warning.
	ev, _ = Evaluate(g, started.Add(TaskWindow-SkipWindow))
	if ev.Kind != EventDailyTaskExpiringSoon {
		t.Fatalf("kind = %q, want daily_task_expiring_soon", ev.Kind)
	}
	if ev.Remaining != SkipWindow {
		t.Errorf("remaining = %v, want %v", ev.Remaining, SkipWindow)
	}

	// 5 minutes and a second left: not yet.
	ev, _ = Evaluate(g, started.Add(TaskWindow-SkipWindow-time.Second))
	if ev.Kind != EventNone {
		t.Errorf("kind = %q, want none just outside the warning window", ev.Kind)
	}

	// Window over: expired.
	ev, _ = Evaluate(g, started.Add(TaskWindow))
	if ev.Kind != EventDailyTaskExpired {
		t.Errorf("kind = %q, want daily_task_expired", ev.Kind)
	}
}

func TestEvaluateCheckpointBeatsTaskWarning(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	now := at(g, 7)
	g.DailyTask = &model.DailyTask{
		Text:      "walk",
		StartedAt: now.Add(-TaskWindow + time.Minute),
		Number:    1,
	}

	// Both a pending checkpoint and a task about to expire: the checkpoint
	// decision wins; there is only ever one event.
	ev, _ := Evaluate(g, now)
	if ev.Kind != EventCheckpointPending {
		t.Errorf("kind = %q, want checkpoint_pending", ev.Kind)
	}
}
