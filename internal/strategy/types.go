// Package strategy holds the catalog of optimization strategies and the
// selection logic that picks one for the current battery conditions.
package strategy

// Algorithm tags which scheduling algorithm a strategy drives. The
// optimizer dispatches on this tag; the catalog treats it as opaque.
type Algorithm string

// Supported scheduling algorithm tags.
const (
	AlgoGreedy             Algorithm = "greedy"
	AlgoDynamicProgramming Algorithm = "dynamic_programming"
	AlgoMLBased            Algorithm = "ml_based"
	AlgoGenetic            Algorithm = "genetic"
)

// Applicability is the window of conditions a strategy is suited for.
type Applicability struct {
	MinBatteryLevel  float64 `json:"min_battery_level"`
	MaxBatteryLevel  float64 `json:"max_battery_level"`
	MinAdherence     float64 `json:"min_adherence"`
	MaxReminderCount int     `json:"max_reminder_count"` // per optimization pass
}

// Weights are the four optimization-goal weights. Each is in [0, 1];
// they need not sum to 1.
type Weights struct {
	BatteryEfficiency     float64 `json:"battery_efficiency"`
	AdherencePreservation float64 `json:"adherence_preservation"`
	CulturalCompliance    float64 `json:"cultural_compliance"`
	UserExperience        float64 `json:"user_experience"`
}

// Performance is the observed outcome record for a strategy. These are
// the only mutable fields on a catalog entry.
type Performance struct {
	BatteryReductionPct float64 `json:"battery_reduction_pct"`
	AdherenceImpactPct  float64 `json:"adherence_impact_pct"`
	UserSatisfaction    float64 `json:"user_satisfaction"` // 0..1
}

// Strategy is one immutable catalog entry (performance fields aside).
type Strategy struct {
	Name          string             `json:"name"`
	Algorithm     Algorithm          `json:"algorithm"`
	Applicability Applicability      `json:"applicability"`
	Weights       Weights            `json:"weights"`
	Params        map[string]float64 `json:"params"`
	Performance   Performance        `json:"performance"`
	Active        bool               `json:"active"`
}

// Builtin returns the built-in strategies in declaration order. Order
// matters: selection ties break toward the earlier entry.
func Builtin() []Strategy {
	return []Strategy{
		{
			Name:      "battery-saver",
			Algorithm: AlgoGreedy,
			Applicability: Applicability{
				MinBatteryLevel:  0,
				MaxBatteryLevel:  0.35,
				MinAdherence:     0,
				MaxReminderCount: 20,
			},
			Weights: Weights{
				BatteryEfficiency:     0.9,
				AdherencePreservation: 0.4,
				CulturalCompliance:    0.5,
				UserExperience:        0.3,
			},
			Params: map[string]float64{
				"shift_step_minutes": 30,
				"max_shift_minutes":  90,
			},
			Performance: Performance{BatteryReductionPct: 18, AdherenceImpactPct: -4, UserSatisfaction: 0.6},
			Active:      true,
		},
		{
			Name:      "adherence-first",
			Algorithm: AlgoDynamicProgramming,
			Applicability: Applicability{
				MinBatteryLevel:  0.30,
				MaxBatteryLevel:  1.0,
				MinAdherence:     0.5,
				MaxReminderCount: 12,
			},
			Weights: Weights{
				BatteryEfficiency:     0.2,
				AdherencePreservation: 0.95,
				CulturalCompliance:    0.7,
				UserExperience:        0.6,
			},
			Params: map[string]float64{
				"slot_minutes":      15,
				"max_shift_minutes": 45,
			},
			Performance: Performance{BatteryReductionPct: 6, AdherenceImpactPct: 1, UserSatisfaction: 0.8},
			Active:      true,
		},
		{
			Name:      "balanced-ml",
			Algorithm: AlgoMLBased,
			Applicability: Applicability{
				MinBatteryLevel:  0.15,
				MaxBatteryLevel:  0.90,
				MinAdherence:     0.3,
				MaxReminderCount: 16,
			},
			Weights: Weights{
				BatteryEfficiency:     0.6,
				AdherencePreservation: 0.7,
				CulturalCompliance:    0.6,
				UserExperience:        0.5,
			},
			Params: map[string]float64{
				"max_shift_minutes": 60,
			},
			Performance: Performance{BatteryReductionPct: 12, AdherenceImpactPct: -2, UserSatisfaction: 0.7},
			Active:      true,
		},
		{
			Name:      "night-batcher",
			Algorithm: AlgoGenetic,
			Applicability: Applicability{
				MinBatteryLevel:  0,
				MaxBatteryLevel:  1.0,
				MinAdherence:     0,
				MaxReminderCount: 40,
			},
			Weights: Weights{
				BatteryEfficiency:     0.75,
				AdherencePreservation: 0.5,
				CulturalCompliance:    0.4,
				UserExperience:        0.4,
			},
			Params: map[string]float64{
				"generations":       20,
				"max_shift_minutes": 90,
			},
			Performance: Performance{BatteryReductionPct: 15, AdherenceImpactPct: -3, UserSatisfaction: 0.65},
			Active:      true,
		},
	}
}
