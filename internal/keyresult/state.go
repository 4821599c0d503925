package keyresult

import (
	"math"

	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

const (
	AtRiskWindowDays = 14
	AtRiskThreshold  = 50.0
)

// CompletionPercentage is current/target capped at 100. A non-positive target yields 0.
func CompletionPercentage(targetValue, currentValue float64) float64 {
	if targetValue <= 0 {
		return 0
	}
	return math.Min(currentValue/targetValue*100, 100)
}

// ComputeState derives completion percentage and status. It is pure: the same
// inputs always give the same output.
func ComputeState(targetValue, currentValue float64, deadline, today util.Date) (float64, KeyResultStatus) {
	pct := CompletionPercentage(targetValue, currentValue)

	switch {
	case pct >= 100:
		return pct, StatusCompleted
	case currentValue == 0:
		return pct, StatusNotStarted
	case today.DaysUntil(deadline) < AtRiskWindowDays && pct < AtRiskThreshold:
		return pct, StatusAtRisk
	default:
		return pct, StatusInProgress
	}
}
