package energy

import (
	"testing"
	"time"
)

func obsAt(actual float64, hours float64, count int, at time.Time) Observation {
	return Observation{Actual: actual, TimeFrameHours: hours, ReminderCount: count, At: at}
}

func TestApplyObservation_InputsUntouched(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")
	origDaily := p.AverageDailyUsage
	origNext := m.NextHourUsage

	ApplyObservation(p, m, obsAt(0.10, 1, 2, time.Now()))

	if p.AverageDailyUsage != origDaily {
		t.Error("pattern input was mutated")
	}
	if m.NextHourUsage != origNext {
		t.Error("model input was mutated")
	}
}

func TestApplyObservation_ConvergesToObservedDrain(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")

	const hourly = 0.05
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	prev := m.NextHourUsage
	for i := 0; i < 60; i++ {
		p, m = ApplyObservation(p, m, obsAt(hourly, 1, 1, at.Add(time.Duration(i)*time.Hour)))
		// Approach from below is one-way: each forecast moves toward the
		// steady rate and never swings past it.
		if m.NextHourUsage > hourly+1e-9 {
			t.Fatalf("forecast overshot steady drain at step %d: %.5f > %.5f",
				i, m.NextHourUsage, hourly)
		}
		if m.NextHourUsage < prev-1e-9 {
			t.Fatalf("forecast regressed at step %d: %.5f -> %.5f",
				i, prev, m.NextHourUsage)
		}
		prev = m.NextHourUsage
	}

	if m.NextHourUsage < 0.04 || m.NextHourUsage > 0.06 {
		t.Errorf("next-hour forecast = %.4f, want near %.2f", m.NextHourUsage, hourly)
	}
	if m.Next6HourUsage <= m.NextHourUsage {
		t.Error("6h horizon should exceed 1h horizon for steady drain")
	}
	if m.Accuracy < 0.8 {
		t.Errorf("accuracy after steady observations = %.2f, want high", m.Accuracy)
	}
}

func TestApplyObservation_EMABounded(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")

	// A wild outlier must move the averages, not replace them.
	before := p.AverageDailyUsage
	p2, m2 := ApplyObservation(p, m, obsAt(1.0, 1, 1, time.Now()))

	if p2.AverageDailyUsage <= before {
		t.Error("daily usage should move toward the observation")
	}
	// One observation at 24x the daily budget must not dominate a 0.95
	// decay average.
	if p2.AverageDailyUsage > before+0.05*24+0.001 {
		t.Errorf("daily usage jumped to %.3f after one outlier", p2.AverageDailyUsage)
	}
	if m2.Accuracy < 0 || m2.Accuracy > 1 {
		t.Errorf("accuracy out of range: %.3f", m2.Accuracy)
	}
	if m2.Confidence < 0 || m2.Confidence > 1 {
		t.Errorf("confidence out of range: %.3f", m2.Confidence)
	}
}

func TestApplyObservation_ZeroTimeFrameDefaultsToHour(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")

	_, m2 := ApplyObservation(p, m, Observation{Actual: 0.03})
	if m2.UpdatedAt.IsZero() {
		t.Error("zero observation time should default to now")
	}
	level := m2.feature(featLevel, -1)
	if level < 0 {
		t.Fatal("smoothing level feature missing after update")
	}
}

func TestApplyObservation_ConfidenceGrowsWithSamples(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")

	var confidences []float64
	at := time.Now()
	for i := 0; i < 48; i++ {
		p, m = ApplyObservation(p, m, obsAt(0.01, 1, 1, at.Add(time.Duration(i)*time.Hour)))
		confidences = append(confidences, m.Confidence)
	}

	if confidences[47] <= confidences[0] {
		t.Errorf("confidence should grow with history: %.3f -> %.3f",
			confidences[0], confidences[47])
	}
	if confidences[47] > 1 {
		t.Errorf("confidence exceeded 1: %.3f", confidences[47])
	}
}

func TestApplyObservation_PerReminderImpact(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")

	// 4 reminders costing 0.02 total: per-reminder cost 0.005, matching
	// the default, so the EMA should hold steady.
	p2, _ := ApplyObservation(p, m, obsAt(0.02, 1, 4, time.Now()))
	if p2.ReminderBatteryImpact < 0.004 || p2.ReminderBatteryImpact > 0.006 {
		t.Errorf("per-reminder impact = %.4f, want near 0.005", p2.ReminderBatteryImpact)
	}

	// Zero reminder count must not divide by zero.
	p3, _ := ApplyObservation(p, m, obsAt(0.02, 1, 0, time.Now()))
	if p3.ReminderBatteryImpact <= 0 {
		t.Errorf("impact after zero-count observation = %.4f", p3.ReminderBatteryImpact)
	}
}

func TestApplyObservation_PeakUsageTracksHour(t *testing.T) {
	p := NewUsagePattern("u1")
	m := NewPredictionModel("u1")

	nine := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	p, m = ApplyObservation(p, m, obsAt(0.08, 1, 1, nine))
	p, _ = ApplyObservation(p, m, obsAt(0.08, 1, 1, nine.Add(24*time.Hour)))

	found := false
	for _, peak := range p.PeakUsage {
		if peak.Hour == 9 {
			found = true
			if peak.Fraction <= 0 {
				t.Errorf("peak fraction for hour 9 = %.4f", peak.Fraction)
			}
		}
	}
	if !found {
		t.Error("expected a peak sample for hour 9")
	}
	if len(p.PeakUsage) != 1 {
		t.Errorf("same-hour observations should blend, got %d peak entries", len(p.PeakUsage))
	}
}

func TestForecast_MatchesHorizonsWithoutMutation(t *testing.T) {
	m := NewPredictionModel("u1")
	h1, h6, h24 := Forecast(m)

	if h1 != m.NextHourUsage || h6 != m.Next6HourUsage || h24 != m.Next24HourUsage {
		t.Errorf("Forecast() = (%.4f, %.4f, %.4f), model holds (%.4f, %.4f, %.4f)",
			h1, h6, h24, m.NextHourUsage, m.Next6HourUsage, m.Next24HourUsage)
	}
	for _, v := range []float64{h1, h6, h24} {
		if v < 0 || v > 1 {
			t.Errorf("horizon out of [0,1]: %.4f", v)
		}
	}
	if h1 > h6 || h6 > h24 {
		t.Errorf("horizons should be cumulative: %.4f, %.4f, %.4f", h1, h6, h24)
	}
}

func TestSmooth_NegativeLevelClamped(t *testing.T) {
	level, _ := smooth(0.01, -0.5, 0)
	if level < 0 {
		t.Errorf("smoothed level went negative: %.4f", level)
	}
}
