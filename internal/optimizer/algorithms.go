package optimizer

import (
	"time"

	"github.com/lazylmf-ai/powersched/internal/energy"
	"github.com/lazylmf-ai/powersched/internal/strategy"
)

// shiftInput is everything an algorithm variant sees for one reminder.
type shiftInput struct {
	reminder Reminder
	params   map[string]float64
	pattern  energy.UsagePattern
	model    energy.PredictionModel
	maxDelay time.Duration
}

// shiftFunc is the single signature every scheduling algorithm variant
// implements: reminder in, (new time, battery reduction estimate) out.
// Implementations keep newTime within [scheduled, scheduled+maxDelay];
// the optimizer clamps defensively regardless.
type shiftFunc func(in shiftInput) (time.Time, float64)

// forAlgorithm maps a strategy's algorithm tag to its shift function.
// The tag set is closed; unknown tags fall back to greedy.
func forAlgorithm(tag strategy.Algorithm) shiftFunc {
	switch tag {
	case strategy.AlgoGreedy:
		return greedyShift
	case strategy.AlgoDynamicProgramming:
		return dpShift
	case strategy.AlgoMLBased:
		return mlShift
	case strategy.AlgoGenetic:
		return geneticShift
	default:
		return greedyShift
	}
}

// param reads a named algorithm parameter with a fallback.
func (in shiftInput) param(name string, fallback float64) float64 {
	if v, ok := in.params[name]; ok {
		return v
	}
	return fallback
}

// maxShift returns the algorithm's shift ceiling, never exceeding the
// configured maximum scheduling delay.
func (in shiftInput) maxShift() time.Duration {
	limit := time.Duration(in.param("max_shift_minutes", in.maxDelay.Minutes())) * time.Minute
	if limit > in.maxDelay || limit <= 0 {
		limit = in.maxDelay
	}
	return limit
}

// drainAt estimates the hourly drain fraction at t from the pattern's
// peak-usage samples, falling back to the flat daily average.
func drainAt(p energy.UsagePattern, t time.Time) float64 {
	hour := t.Hour()
	for _, peak := range p.PeakUsage {
		if peak.Hour == hour {
			return peak.Fraction
		}
	}
	return p.AverageDailyUsage / 24
}

// reductionEstimate converts a drain improvement into percent points,
// crediting the pattern's per-reminder impact when the reminder moved.
func reductionEstimate(p energy.UsagePattern, orig, optimized time.Time) float64 {
	improvement := drainAt(p, orig) - drainAt(p, optimized)
	if improvement < 0 {
		improvement = 0
	}
	est := improvement * 100 * p.BackgroundEfficiency
	if !optimized.Equal(orig) {
		est += p.ReminderBatteryImpact * 100 * 0.2
	}
	return est
}

// greedyShift steps forward in fixed increments and takes the first
// candidate that meaningfully beats the original slot's drain.
func greedyShift(in shiftInput) (time.Time, float64) {
	orig := in.reminder.ScheduledTime
	step := time.Duration(in.param("shift_step_minutes", 30)) * time.Minute
	if step <= 0 {
		step = 30 * time.Minute
	}
	limit := in.maxShift()

	origDrain := drainAt(in.pattern, orig)
	best := orig
	bestDrain := origDrain
	for d := step; d <= limit; d += step {
		candidate := orig.Add(d)
		drain := drainAt(in.pattern, candidate)
		if drain < origDrain*0.9 {
			// Good enough; greedy takes it immediately.
			return candidate, reductionEstimate(in.pattern, orig, candidate)
		}
		if drain < bestDrain {
			best, bestDrain = candidate, drain
		}
	}
	return best, reductionEstimate(in.pattern, orig, best)
}

// dpShift evaluates every slot in the window and picks the minimum-cost
// one, where cost trades predicted drain against delay.
func dpShift(in shiftInput) (time.Time, float64) {
	orig := in.reminder.ScheduledTime
	slot := time.Duration(in.param("slot_minutes", 15)) * time.Minute
	if slot <= 0 {
		slot = 15 * time.Minute
	}
	limit := in.maxShift()

	best := orig
	bestCost := slotCost(in.pattern, orig, 0, limit)
	for d := slot; d <= limit; d += slot {
		candidate := orig.Add(d)
		if cost := slotCost(in.pattern, candidate, d, limit); cost < bestCost {
			best, bestCost = candidate, cost
		}
	}
	return best, reductionEstimate(in.pattern, orig, best)
}

// slotCost scores one candidate slot: predicted drain plus a linear
// delay penalty so equal-drain slots prefer the earlier time.
func slotCost(p energy.UsagePattern, candidate time.Time, delay, limit time.Duration) float64 {
	penalty := 0.0
	if limit > 0 {
		penalty = 0.3 * (float64(delay) / float64(limit))
	}
	return drainAt(p, candidate)*24 + penalty
}

// mlShift defers proportionally to how much the model expects the next
// hour to exceed the near-term average, scaled by model confidence.
func mlShift(in shiftInput) (time.Time, float64) {
	orig := in.reminder.ScheduledTime
	limit := in.maxShift()

	avgHourly := in.model.Next6HourUsage / 6
	if avgHourly <= 0 {
		return orig, 0
	}
	excess := (in.model.NextHourUsage - avgHourly) / avgHourly
	if excess <= 0 {
		// The immediate hour is already cheap; keep the original time.
		return orig, 0
	}
	if excess > 1 {
		excess = 1
	}

	shift := time.Duration(float64(limit) * excess * in.model.Confidence)
	candidate := orig.Add(shift.Round(time.Minute))
	return candidate, reductionEstimate(in.pattern, orig, candidate)
}

// geneticShift runs a deterministic neighborhood search: a fixed seed
// population of delays refined over a bounded number of generations.
func geneticShift(in shiftInput) (time.Time, float64) {
	orig := in.reminder.ScheduledTime
	limit := in.maxShift()
	generations := int(in.param("generations", 20))
	if generations <= 0 {
		generations = 20
	}

	fitness := func(d time.Duration) float64 {
		return -slotCost(in.pattern, orig.Add(d), d, limit)
	}

	// Seed population: fixed fractions of the window.
	population := []time.Duration{
		0,
		limit / 4,
		limit / 2,
		3 * limit / 4,
		limit,
	}

	mutationStep := limit / 8
	if mutationStep < time.Minute {
		mutationStep = time.Minute
	}

	for g := 0; g < generations; g++ {
		improved := false
		for i, d := range population {
			for _, neighbor := range []time.Duration{d - mutationStep, d + mutationStep} {
				if neighbor < 0 || neighbor > limit {
					continue
				}
				if fitness(neighbor) > fitness(population[i]) {
					population[i] = neighbor
					improved = true
				}
			}
		}
		if !improved {
			break
		}
		mutationStep /= 2
		if mutationStep < time.Minute {
			break
		}
	}

	best := population[0]
	for _, d := range population[1:] {
		if fitness(d) > fitness(best) {
			best = d
		}
	}
	candidate := orig.Add(best.Round(time.Minute))
	return candidate, reductionEstimate(in.pattern, orig, candidate)
}
