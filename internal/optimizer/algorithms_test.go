package optimizer

import (
	"testing"
	"time"

	"github.com/lazylmf-ai/powersched/internal/energy"
	"github.com/lazylmf-ai/powersched/internal/strategy"
)

var testOrigin = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

// expensiveMorning is a pattern where hour 9 drains heavily and hour 10
// onward is cheap, so every algorithm has a reason to defer.
func expensiveMorning(userID string) energy.UsagePattern {
	p := energy.NewUsagePattern(userID)
	p.PeakUsage = []energy.PeakUsage{
		{Hour: 9, Fraction: 0.10},
		{Hour: 10, Fraction: 0.01},
		{Hour: 11, Fraction: 0.01},
	}
	return p
}

func testShiftInput(p energy.UsagePattern, params map[string]float64) shiftInput {
	return shiftInput{
		reminder: Reminder{ID: "r1", MedicationID: "m1", ScheduledTime: testOrigin},
		params:   params,
		pattern:  p,
		model:    energy.NewPredictionModel("u1"),
		maxDelay: 90 * time.Minute,
	}
}

func TestShiftFuncs_StayWithinDelayBudget(t *testing.T) {
	patterns := map[string]energy.UsagePattern{
		"flat":              energy.NewUsagePattern("u1"),
		"expensive morning": expensiveMorning("u1"),
	}
	algorithms := []strategy.Algorithm{
		strategy.AlgoGreedy,
		strategy.AlgoDynamicProgramming,
		strategy.AlgoMLBased,
		strategy.AlgoGenetic,
	}

	for name, p := range patterns {
		for _, algo := range algorithms {
			in := testShiftInput(p, nil)
			newTime, reduction := forAlgorithm(algo)(in)

			if newTime.Before(testOrigin) {
				t.Errorf("%s on %s moved earlier than scheduled: %s", algo, name, newTime)
			}
			if newTime.After(testOrigin.Add(in.maxDelay)) {
				t.Errorf("%s on %s exceeded the delay budget: %s", algo, name, newTime)
			}
			if reduction < 0 {
				t.Errorf("%s on %s produced negative reduction %.3f", algo, name, reduction)
			}
		}
	}
}

func TestShiftFuncs_Deterministic(t *testing.T) {
	p := expensiveMorning("u1")
	for _, algo := range []strategy.Algorithm{
		strategy.AlgoGreedy,
		strategy.AlgoDynamicProgramming,
		strategy.AlgoMLBased,
		strategy.AlgoGenetic,
	} {
		shift := forAlgorithm(algo)
		firstTime, firstReduction := shift(testShiftInput(p, nil))
		for i := 0; i < 5; i++ {
			newTime, reduction := shift(testShiftInput(p, nil))
			if !newTime.Equal(firstTime) || reduction != firstReduction {
				t.Errorf("%s varied across identical runs: %s/%.3f then %s/%.3f",
					algo, firstTime, firstReduction, newTime, reduction)
			}
		}
	}
}

func TestGreedyShift_TakesFirstCheapSlot(t *testing.T) {
	in := testShiftInput(expensiveMorning("u1"), map[string]float64{
		"shift_step_minutes": 30,
		"max_shift_minutes":  90,
	})
	newTime, reduction := greedyShift(in)

	// 9:30 is still inside the expensive hour; 10:00 is the first slot
	// that clears the improvement bar.
	want := testOrigin.Add(time.Hour)
	if !newTime.Equal(want) {
		t.Errorf("greedy picked %s, want %s", newTime, want)
	}
	if reduction <= 0 {
		t.Errorf("deferral out of a peak should credit a reduction, got %.3f", reduction)
	}
}

func TestGreedyShift_FlatPatternKeepsOriginal(t *testing.T) {
	in := testShiftInput(energy.NewUsagePattern("u1"), nil)
	newTime, _ := greedyShift(in)
	if !newTime.Equal(testOrigin) {
		t.Errorf("no drain gradient should keep the original time, got %s", newTime)
	}
}

func TestDPShift_PrefersEarlierOnEqualDrain(t *testing.T) {
	// Hours 10 and 11 are equally cheap; the delay penalty must pick the
	// earlier slot.
	in := testShiftInput(expensiveMorning("u1"), map[string]float64{
		"slot_minutes":      15,
		"max_shift_minutes": 90,
	})
	newTime, _ := dpShift(in)
	if !newTime.Equal(testOrigin.Add(time.Hour)) {
		t.Errorf("dp picked %s, want the earliest cheap slot %s",
			newTime, testOrigin.Add(time.Hour))
	}
}

func TestMLShift_CheapHourKeepsOriginal(t *testing.T) {
	in := testShiftInput(energy.NewUsagePattern("u1"), nil)
	// The fresh model forecasts a flat profile, so the next hour never
	// exceeds the running average.
	newTime, reduction := mlShift(in)
	if !newTime.Equal(testOrigin) {
		t.Errorf("flat forecast should keep the original time, got %s", newTime)
	}
	if reduction != 0 {
		t.Errorf("unmoved reminder should report zero reduction, got %.3f", reduction)
	}
}

func TestGeneticShift_FindsCheapRegion(t *testing.T) {
	in := testShiftInput(expensiveMorning("u1"), map[string]float64{
		"generations":       20,
		"max_shift_minutes": 90,
	})
	newTime, _ := geneticShift(in)
	if newTime.Hour() == 9 {
		t.Errorf("search stayed in the expensive hour: %s", newTime)
	}
}

func TestForAlgorithm_UnknownTagFallsBackToGreedy(t *testing.T) {
	in := testShiftInput(expensiveMorning("u1"), nil)
	fromUnknown, _ := forAlgorithm(strategy.Algorithm("quantum"))(in)
	fromGreedy, _ := greedyShift(in)
	if !fromUnknown.Equal(fromGreedy) {
		t.Errorf("unknown tag produced %s, greedy produces %s", fromUnknown, fromGreedy)
	}
}

func TestDrainAt_FallsBackToDailyAverage(t *testing.T) {
	p := energy.NewUsagePattern("u1")
	got := drainAt(p, testOrigin)
	want := p.AverageDailyUsage / 24
	if got != want {
		t.Errorf("drainAt without peaks = %.5f, want daily average %.5f", got, want)
	}
}
