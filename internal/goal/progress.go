package goal

import "math"

// Percent converts a confirmed-checkpoint count into route progress. The +1
// in the denominator is the final goal itself, so progress stays below 100
// until final confirmation; 100 is set only by ConfirmFinal. Skipped
// checkpoints do not count.
func Percent(completedCount, totalCheckpoints int) int {
	if totalCheckpoints < 0 || completedCount < 0 {
		return 0
	}
	p := int(math.Round(float64(completedCount) / float64(totalCheckpoints+1) * 100))
	if p > 99 {
		p = 99
	}
	return p
}
