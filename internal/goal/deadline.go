package goal

import (
	"fmt"
	"math"
	"time"

	"github.com/karavan-app/karavan/internal/model"
)

// periodCheckpointCount is the number of checkpoints the creation flow
// generates for each period, and periodUnitDays the days between them.
var periodCheckpointCount = map[string]int{
	model.PeriodWeek:       7,
	model.PeriodMonth:      4,
	model.PeriodThreeMonth: 3,
	model.PeriodSixMonth:   6,
	model.PeriodYear:       4,
	model.PeriodFiveYears:  10,
}

func periodUnitDays(period string) int {
	switch period {
	case model.PeriodWeek:
		return 1
	case model.PeriodMonth:
		return 7
	case model.PeriodThreeMonth, model.PeriodSixMonth:
		return 30
	case model.PeriodYear:
		return 90
	case model.PeriodFiveYears:
		return 180
	default:
		return 7
	}
}

// Thresholds returns, for each checkpoint, the number of whole days since the
// goal's start date required to unlock it. The result is non-decreasing and
// has exactly one entry per checkpoint. It must reproduce the bucket count
// the creation flow used to generate the checkpoints; a mismatch is
// ErrDataIntegrity, not something to paper over.
func Thresholds(g *model.Goal) ([]int, error) {
	n := len(g.Checkpoints)
	if n == 0 {
		return nil, nil
	}

	switch g.DeadlineType {
	case model.DeadlinePeriod:
		if want, ok := periodCheckpointCount[g.Period]; ok && want != n {
			return nil, fmt.Errorf("%w: period %q expects %d checkpoints, goal has %d", ErrDataIntegrity, g.Period, want, n)
		}
		unit := periodUnitDays(g.Period)
		out := make([]int, n)
		for i := range out {
			out[i] = (i + 1) * unit
		}
		return out, nil

	case model.DeadlineDate:
		if g.DeadlineDate == nil {
			return nil, fmt.Errorf("%w: date deadline without a date", ErrDataIntegrity)
		}
		total := daysBetween(g.StartDate, *g.DeadlineDate)
		if total < 1 {
			total = 1
		}
		count := dateCheckpointCount(total)
		if count != n {
			return nil, fmt.Errorf("%w: %d days until deadline expects %d checkpoints, goal has %d", ErrDataIntegrity, total, count, n)
		}
		out := make([]int, n)
		for i := range out {
			out[i] = int(math.Ceil(float64(i+1) * float64(total) / float64(count)))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown deadline type %q", ErrDataIntegrity, g.DeadlineType)
	}
}

// dateCheckpointCount mirrors the checkpoint generation buckets for
// date-type deadlines: daily up to a week, weekly up to a month, monthly up
// to six months, quarterly up to a year, then half-year buckets capped at 12.
func dateCheckpointCount(totalDays int) int {
	switch {
	case totalDays <= 7:
		return totalDays
	case totalDays <= 30:
		return int(math.Ceil(float64(totalDays) / 7))
	case totalDays <= 180:
		return int(math.Ceil(float64(totalDays) / 30))
	case totalDays <= 365:
		return 4
	default:
		count := int(math.Ceil(float64(totalDays) / 182))
		if count > 12 {
			count = 12
		}
		return count
	}
}

// daysBetween counts whole calendar days from a to b, ignoring time of day.
func daysBetween(a, b time.Time) int {
	return int(startOfDay(b).Sub(startOfDay(a)).Hours() / 24)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysSinceStart returns whole days elapsed since the goal started, clamped
// to zero when the observed clock is behind the start date.
func DaysSinceStart(g *model.Goal, now time.Time) int {
	d := daysBetween(g.StartDate, now)
	if d < 0 {
		return 0
	}
	return d
}
