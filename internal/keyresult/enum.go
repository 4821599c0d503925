package keyresult

type KeyResultStatus string

const (
	StatusNotStarted KeyResultStatus = "NOT_STARTED"
	StatusInProgress KeyResultStatus = "IN_PROGRESS"
	StatusAtRisk     KeyResultStatus = "AT_RISK"
	StatusCompleted  KeyResultStatus = "COMPLETED"
)

var AllStatuses = []KeyResultStatus{
	StatusNotStarted,
	StatusInProgress,
	StatusAtRisk,
	StatusCompleted,
}

func (s KeyResultStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}
