package battery

import "time"

// Admission is the supervisor's answer to a canProceed probe.
type Admission struct {
	Proceed        bool          `json:"proceed"`
	RetryAfter     time.Duration `json:"retry_after,omitempty"`
	CostMultiplier float64       `json:"cost_multiplier"`
	Reason         string        `json:"reason"`
}

// Retry delays suggested when an operation is restricted.
const (
	aggressiveRetry = 60 * time.Minute
	restrictedRetry = 30 * time.Minute
)

// restrictedCostMultiplier inflates the accounted cost of operations
// admitted while a restriction is active.
const restrictedCostMultiplier = 1.5

// CanProceed decides whether an operation may run under the current
// posture. Pure given current state: it has no side effects, so callers
// can probe repeatedly without cost.
func (s *Supervisor) CanProceed(op OpType, priority Priority) Admission {
	if priority == PriorityCritical {
		return Admission{Proceed: true, CostMultiplier: 1, Reason: "critical priority always proceeds"}
	}

	posture := s.Posture()
	if !restricted(posture.Restrictions, op) {
		return Admission{Proceed: true, CostMultiplier: 1, Reason: "no active restriction for operation"}
	}

	if posture.Level == LevelAggressive {
		return Admission{
			Proceed:        false,
			RetryAfter:     aggressiveRetry,
			CostMultiplier: 1,
			Reason:         "aggressive optimization active, operation rejected",
		}
	}

	// Moderate and conservative admit only high-or-above priority, at an
	// inflated accounted cost.
	if priority.AtLeast(PriorityHigh) {
		return Admission{
			Proceed:        true,
			RetryAfter:     restrictedRetry,
			CostMultiplier: restrictedCostMultiplier,
			Reason:         "restricted operation admitted at high priority",
		}
	}

	return Admission{
		Proceed:        false,
		RetryAfter:     restrictedRetry,
		CostMultiplier: 1,
		Reason:         "restricted operation below high priority",
	}
}

// restricted maps an operation type to the restriction flag governing it.
func restricted(r Restrictions, op OpType) bool {
	switch op {
	case OpBackgroundTask:
		return r.ReduceBackground
	case OpSync:
		return r.ReduceSyncFrequency
	case OpNotification:
		return r.BatchNotifications
	case OpNetwork:
		return r.ReduceBackground
	case OpLocation:
		return r.DeferNonCritical
	case OpAlarm:
		// Alarms are governed by idle-mode compliance, not battery posture.
		return false
	default:
		return r.DeferNonCritical
	}
}
