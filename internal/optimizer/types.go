// Package optimizer produces scheduling decisions: per-reminder retiming
// under the selected strategy, followed by a batch merge that folds
// nearby decisions into shared wake cycles.
package optimizer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
)

// Reminder is one pending reminder to be scheduled.
type Reminder struct {
	ID                string           `json:"id"`
	MedicationID      string           `json:"medication_id"`
	ScheduledTime     time.Time        `json:"scheduled_time"`
	Priority          battery.Priority `json:"priority"`
	TimingConstraints json.RawMessage  `json:"timing_constraints,omitempty"` // opaque to this core
}

// Decision is the computed retiming of one reminder, with rationale.
type Decision struct {
	ReminderID             string    `json:"reminder_id"`
	MedicationID           string    `json:"medication_id"`
	OriginalTime           time.Time `json:"original_time"`
	OptimizedTime          time.Time `json:"optimized_time"`
	BatteryImpactReduction float64   `json:"battery_impact_reduction"` // percent points
	Strategy               string    `json:"strategy"`
	Reasoning              []string  `json:"reasoning"`
	Confidence             float64   `json:"confidence"`
	AdherenceRisk          float64   `json:"adherence_risk"`
	ConstraintsSatisfied   bool      `json:"constraints_satisfied"`
}

// Delay returns how far the decision moved the reminder.
func (d Decision) Delay() time.Duration {
	return d.OptimizedTime.Sub(d.OriginalTime)
}

// Summary aggregates one optimization pass.
type Summary struct {
	TotalReminders               int            `json:"total_reminders"`
	OptimizedReminders           int            `json:"optimized_reminders"`
	BatteryReduction             float64        `json:"battery_reduction"`
	AdherenceImpact              float64        `json:"adherence_impact"`
	AverageDelayMinutes          float64        `json:"average_delay_minutes"`
	StrategyBreakdown            map[string]int `json:"strategy_breakdown"`
	CulturalConstraintsRespected bool           `json:"cultural_constraints_respected"`
	UserSatisfactionEstimate     float64        `json:"user_satisfaction_estimate"`
}

// Result is the output of one optimization pass.
type Result struct {
	OptimizedSchedule []Decision `json:"optimized_schedule"`
	BatteryReduction  float64    `json:"battery_reduction"`
	AdherenceImpact   float64    `json:"adherence_impact"`
	Summary           Summary    `json:"summary"`
}

// RiskOracle scores the probability that a reminder fired at a candidate
// time will be missed. Asynchronous and fallible; callers degrade to
// DefaultRisk on error.
type RiskOracle interface {
	RiskOfMissing(ctx context.Context, userID, medicationID string, candidate time.Time) (float64, error)
}

// DefaultRisk is the fallback adherence risk when the oracle fails.
const DefaultRisk = 0.5

// FixedRiskOracle returns a constant risk. Useful for tests and for
// running without an analytics backend.
type FixedRiskOracle float64

// RiskOfMissing returns the fixed risk value.
func (o FixedRiskOracle) RiskOfMissing(context.Context, string, string, time.Time) (float64, error) {
	return float64(o), nil
}

// TimingPredicate reports whether a candidate time is forbidden by the
// reminder's opaque timing constraints. Cultural and religious calendars
// live behind this predicate; this core never interprets them.
type TimingPredicate func(candidate time.Time, constraints json.RawMessage) bool
