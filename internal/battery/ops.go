package battery

// Priority classifies how important an operation or reminder is.
type Priority string

// Priorities in ascending order of importance.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns a numeric rank for ordering priorities. Unknown values
// rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether p ranks at or above other.
func (p Priority) AtLeast(other Priority) bool {
	return p.Rank() >= other.Rank()
}

// OpType classifies a background operation for admission control.
type OpType string

// Operation types subject to admission control.
const (
	OpBackgroundTask OpType = "background_task"
	OpSync           OpType = "sync"
	OpNotification   OpType = "notification"
	OpNetwork        OpType = "network"
	OpAlarm          OpType = "alarm"
	OpLocation       OpType = "location"
)
