package objective

import "github.com/saulo-duarte/okr-progress/internal/keyresult"

// ShouldComplete is true iff there is at least one sibling and every sibling is completed.
func ShouldComplete(siblings []keyresult.KeyResultStatus) bool {
	if len(siblings) == 0 {
		return false
	}
	for _, s := range siblings {
		if s != keyresult.StatusCompleted {
			return false
		}
	}
	return true
}

// Promotes applies the rule one way only: an active objective whose key results
// are all completed moves to completed. A later regression never demotes it.
func Promotes(current ObjectiveStatus, siblings []keyresult.KeyResultStatus) bool {
	return current == StatusActive && ShouldComplete(siblings)
}

func Statuses(krs []keyresult.KeyResult) []keyresult.KeyResultStatus {
	out := make([]keyresult.KeyResultStatus, len(krs))
	for i, kr := range krs {
		out[i] = kr.Status
	}
	return out
}
