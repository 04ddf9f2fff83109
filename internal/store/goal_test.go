package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karavan-app/karavan/internal/database"
	"github.com/karavan-app/karavan/internal/model"
)

func setupGoalTestDB(t *testing.T) (*GoalStore, *HistoryStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewGoalStore(db), NewHistoryStore(db)
}

func periodGoal(userID int64) *model.Goal {
	return &model.Goal{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        "Learn to juggle",
		StartDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DeadlineType: model.DeadlinePeriod,
		Period:       model.PeriodMonth,
		Checkpoints: []model.Checkpoint{
			{Label: "Two balls"}, {Label: "Three balls"}, {Label: "One minute"}, {Label: "Behind the back"},
		},
		CheckpointStates: []model.CheckpointState{
			model.CheckpointUnset, model.CheckpointUnset, model.CheckpointUnset, model.CheckpointUnset,
		},
	}
}

func TestGoalCreateAndGet(t *testing.T) {
	gs, _ := setupGoalTestDB(t)

	g := periodGoal(7)
	if err := gs.Create(g); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	got, err := gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got == nil {
		t.Fatal("expected goal, got nil")
	}
	if got.Title != "Learn to juggle" {
		t.Errorf("title = %q, want %q", got.Title, "Learn to juggle")
	}
	if got.Period != model.PeriodMonth {
		t.Errorf("period = %q, want %q", got.Period, model.PeriodMonth)
	}
	if len(got.Checkpoints) != 4 {
		t.Fatalf("expected 4 checkpoints, got %d", len(got.Checkpoints))
	}
	if got.Checkpoints[1].Label != "Three balls" {
		t.Errorf("checkpoint order wrong: got %q at index 1", got.Checkpoints[1].Label)
	}
	if len(got.CheckpointStates) != 4 {
		t.Fatalf("expected 4 checkpoint states, got %d", len(got.CheckpointStates))
	}
	if got.DailyTask != nil {
		t.Error("expected no daily task on fresh goal")
	}
}

func TestGoalNotFound(t *testing.T) {
	gs, _ := setupGoalTestDB(t)

	got, err := gs.GetByID(uuid.NewString())
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got != nil {
		t.Error("expected nil for non-existent goal")
	}
}

func TestGoalSaveRoundTrip(t *testing.T) {
	gs, _ := setupGoalTestDB(t)

	g := periodGoal(7)
	if err := gs.Create(g); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	started := time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC)
	g.CheckpointStates[0] = model.CheckpointCompleted
	g.CheckpointStates[1] = model.CheckpointSkipped
	g.Progress = 20
	g.DailyTask = &model.DailyTask{Text: "Practice 10 minutes", StartedAt: started, Number: 3}
	if err := gs.Save(g); err != nil {
		t.Fatalf("save goal: %v", err)
	}

	got, err := gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got.CheckpointStates[0] != model.CheckpointCompleted {
		t.Errorf("state[0] = %q, want completed", got.CheckpointStates[0])
	}
	if got.CheckpointStates[1] != model.CheckpointSkipped {
		t.Errorf("state[1] = %q, want skipped", got.CheckpointStates[1])
	}
	if got.Progress != 20 {
		t.Errorf("progress = %d, want 20", got.Progress)
	}
	if got.DailyTask == nil {
		t.Fatal("expected daily task after save")
	}
	if got.DailyTask.Text != "Practice 10 minutes" {
		t.Errorf("task text = %q", got.DailyTask.Text)
	}
	if !got.DailyTask.StartedAt.Equal(started) {
		t.Errorf("task started_at = %v, want %v", got.DailyTask.StartedAt, started)
	}
	if got.DailyTask.Number != 3 {
		t.Errorf("task number = %d, want 3", got.DailyTask.Number)
	}
}

func TestGoalDateDeadlineRoundTrip(t *testing.T) {
	gs, _ := setupGoalTestDB(t)

	deadline := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	g := periodGoal(7)
	g.DeadlineType = model.DeadlineDate
	g.Period = ""
	g.DeadlineDate = &deadline
	if err := gs.Create(g); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	got, err := gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got.DeadlineDate == nil {
		t.Fatal("expected deadline date")
	}
	if !got.DeadlineDate.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got.DeadlineDate, deadline)
	}
}

func TestGoalListByUser(t *testing.T) {
	gs, _ := setupGoalTestDB(t)

	a := periodGoal(1)
	b := periodGoal(1)
	b.Title = "Read more"
	other := periodGoal(2)
	for _, g := range []*model.Goal{a, b, other} {
		if err := gs.Create(g); err != nil {
			t.Fatalf("create goal: %v", err)
		}
	}

	goals, err := gs.ListByUser(1)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(goals))
	}
	for _, g := range goals {
		if len(g.Checkpoints) != 4 {
			t.Errorf("goal %s missing checkpoints in list", g.ID)
		}
	}
}

func TestGoalDeleteCascadesHistory(t *testing.T) {
	gs, hs := setupGoalTestDB(t)

	g := periodGoal(7)
	if err := gs.Create(g); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	err := hs.Append(g.ID, model.DailyTaskEntry{
		TaskText:  "Practice",
		Completed: true,
		Number:    1,
		Date:      "2025-03-02",
		StartedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("append history: %v", err)
	}

	if err := gs.Delete(g.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}

	got, err := gs.GetByID(g.ID)
	if err != nil {
		t.Fatalf("get deleted goal: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
	n, err := hs.CountByGoal(g.ID)
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	if n != 0 {
		t.Errorf("expected history cascade, got %d entries", n)
	}
}

func TestHistoryAppendAndCount(t *testing.T) {
	gs, hs := setupGoalTestDB(t)

	g := periodGoal(7)
	if err := gs.Create(g); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	completedAt := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	entries := []model.DailyTaskEntry{
		{TaskText: "Day one", Completed: true, Number: 1, Date: "2025-03-01", StartedAt: g.StartDate, CompletedAt: &completedAt},
		{TaskText: "Day two", Completed: false, Number: 2, Date: "2025-03-02", StartedAt: g.StartDate.Add(24 * time.Hour)},
	}
	for _, e := range entries {
		if err := hs.Append(g.ID, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := hs.CountByGoal(g.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	got, err := hs.ListByGoal(g.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].TaskText != "Day one" || !got[0].Completed {
		t.Errorf("entry[0] = %+v", got[0])
	}
	if got[0].CompletedAt == nil || !got[0].CompletedAt.Equal(completedAt) {
		t.Errorf("entry[0].CompletedAt = %v, want %v", got[0].CompletedAt, completedAt)
	}
	if got[1].CompletedAt != nil {
		t.Error("entry[1].CompletedAt should be nil for unfinished task")
	}
}
