package strategy

// Conditions are the inputs to strategy selection.
type Conditions struct {
	BatteryLevel    float64 // 0..1
	ReminderCount   int
	RecentRisk      float64 // recent adherence risk, 0..1
	TimingSensitive bool    // timing constraints are in play
}

// Battery bands that shift scoring emphasis.
const (
	batteryCriticalBand = 0.2
	batteryLowBand      = 0.4
	highRiskThreshold   = 0.6
)

// Select picks the best strategy for the given conditions. It always
// returns a strategy: when no active entry's battery window matches, it
// falls back to the most battery-aggressive entry. Repeated calls with
// identical inputs are deterministic; ties break by declaration order.
func (c *Catalog) Select(cond Conditions) Strategy {
	all := c.Strategies()

	var candidates []Strategy
	for _, s := range all {
		if !s.Active {
			continue
		}
		if cond.BatteryLevel < s.Applicability.MinBatteryLevel || cond.BatteryLevel > s.Applicability.MaxBatteryLevel {
			continue
		}
		candidates = append(candidates, s)
	}

	if len(candidates) == 0 {
		return mostBatteryAggressive(all)
	}

	best := candidates[0]
	bestScore := score(candidates[0], cond)
	for _, s := range candidates[1:] {
		// Strict greater-than keeps declaration order on ties.
		if v := score(s, cond); v > bestScore {
			best, bestScore = s, v
		}
	}
	return best
}

// score rates a strategy for the given conditions. Low battery weights
// toward battery efficiency, healthy battery toward adherence, with
// bonuses for timing compliance when risk or sensitivity is elevated.
func score(s Strategy, cond Conditions) float64 {
	var v float64
	switch {
	case cond.BatteryLevel < batteryCriticalBand:
		v = s.Weights.BatteryEfficiency*3 + s.Weights.AdherencePreservation*0.5
	case cond.BatteryLevel < batteryLowBand:
		v = s.Weights.BatteryEfficiency*1.5 + s.Weights.AdherencePreservation
	default:
		v = s.Weights.AdherencePreservation*2 + s.Weights.UserExperience*0.5
	}

	if cond.RecentRisk > highRiskThreshold {
		v += s.Weights.CulturalCompliance * 0.5
	}
	if cond.TimingSensitive {
		v += s.Weights.CulturalCompliance * 0.3
	}
	if cond.ReminderCount > 0 && cond.ReminderCount <= s.Applicability.MaxReminderCount {
		v += 0.1
	}
	return v
}

// mostBatteryAggressive returns the entry with the highest battery
// efficiency weight; the safety default when nothing matches.
func mostBatteryAggressive(all []Strategy) Strategy {
	best := all[0]
	for _, s := range all[1:] {
		if s.Weights.BatteryEfficiency > best.Weights.BatteryEfficiency {
			best = s
		}
	}
	return best
}
