package goal

import (
	"errors"
	"testing"
	"time"

	"github.com/karavan-app/karavan/internal/model"
)

func makeGoal(period string, count int) *model.Goal {
	g := &model.Goal{
		ID:           "g-test",
		UserID:       1,
		StartDate:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		DeadlineType: model.DeadlinePeriod,
		Period:       period,
	}
	for i := 0; i < count; i++ {
		g.Checkpoints = append(g.Checkpoints, model.Checkpoint{Label: "cp"})
		g.CheckpointStates = append(g.CheckpointStates, model.CheckpointUnset)
	}
	return g
}

func makeDateGoal(start time.Time, totalDays, count int) *model.Goal {
	deadline := start.AddDate(0, 0, totalDays)
	g := &model.Goal{
		ID:           "g-date",
		UserID:       1,
		StartDate:    start,
		DeadlineType: model.DeadlineDate,
		DeadlineDate: &deadline,
	}
	for i := 0; i < count; i++ {
		g.Checkpoints = append(g.Checkpoints, model.Checkpoint{Label: "cp"})
		g.CheckpointStates = append(g.CheckpointStates, model.CheckpointUnset)
	}
	return g
}

func TestThresholdsPeriods(t *testing.T) {
	tests := []struct {
		period string
		count  int
		want   []int
	}{
		{model.PeriodWeek, 7, []int{1, 2, 3, 4, 5, 6, 7}},
		{model.PeriodMonth, 4, []int{7, 14, 21, 28}},
		{model.PeriodThreeMonth, 3, []int{30, 60, 90}},
		{model.PeriodSixMonth, 6, []int{30, 60, 90, 120, 150, 180}},
		{model.PeriodYear, 4, []int{90, 180, 270, 360}},
		{model.PeriodFiveYears, 10, []int{180, 360, 540, 720, 900, 1080, 1260, 1440, 1620, 1800}},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			got, err := Thresholds(makeGoal(tt.period, tt.count))
			if err != nil {
				t.Fatalf("thresholds: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("threshold[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestThresholdsPeriodCountMismatch(t *testing.T) {
	_, err := Thresholds(makeGoal(model.PeriodMonth, 5))
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("err = %v, want ErrDataIntegrity", err)
	}
}

func TestThresholdsEmpty(t *testing.T) {
	got, err := Thresholds(makeGoal(model.PeriodMonth, 0))
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil thresholds for zero checkpoints, got %v", got)
	}
}

func TestDateCheckpointCountBuckets(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{1, 1},
		{5, 5},
		{7, 7},
		{8, 2},   // ceil(8/7) weekly
		{30, 5},  // ceil(30/7)
		{31, 2},  // ceil(31/30) monthly
		{180, 6}, // ceil(180/30)
		{200, 4}, // quarterly
		{365, 4},
		{366, 3},  // ceil(366/182) half-years
		{3650, 12}, // capped
	}
	for _, tt := range tests {
		if got := dateCheckpointCount(tt.days); got != tt.want {
			t.Errorf("dateCheckpointCount(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestThresholdsDateDeadline(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	// 10 days out: 2 weekly checkpoints, spread over the span.
	g := makeDateGoal(start, 10, 2)
	got, err := Thresholds(g)
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	if got[0] != 5 || got[1] != 10 {
		t.Errorf("thresholds = %v, want [5 10]", got)
	}

	// Last threshold always lands on the deadline day.
	g = makeDateGoal(start, 90, 3)
	got, err = Thresholds(g)
	if err != nil {
		t.Fatalf("thresholds: %v", err)
	}
	if got[len(got)-1] != 90 {
		t.Errorf("final threshold = %d, want 90", got[len(got)-1])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("thresholds not monotonic: %v", got)
		}
	}
}

func TestThresholdsDateCountMismatch(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := Thresholds(makeDateGoal(start, 10, 5))
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("err = %v, want ErrDataIntegrity", err)
	}
}

func TestThresholdsDateMissingDate(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)
	g.DeadlineType = model.DeadlineDate
	g.DeadlineDate = nil
	_, err := Thresholds(g)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("err = %v, want ErrDataIntegrity", err)
	}
}

func TestDaysSinceStart(t *testing.T) {
	g := makeGoal(model.PeriodMonth, 4)

	// Whole calendar days, time of day ignored.
	now := g.StartDate.AddDate(0, 0, 10).Add(-9 * time.Hour) // earlier clock time, same day count
	if got := DaysSinceStart(g, now); got != 10 {
		t.Errorf("days = %d, want 10", got)
	}

	// Clock behind start clamps to zero.
	if got := DaysSinceStart(g, g.StartDate.AddDate(0, 0, -3)); got != 0 {
		t.Errorf("days = %d, want 0 for past clock", got)
	}
}
