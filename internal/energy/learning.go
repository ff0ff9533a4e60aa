package energy

import (
	"math"
	"time"
)

// Observation is one learning event: how much battery was actually used
// over a time frame, with scheduling context.
type Observation struct {
	Actual         float64   `json:"actual"` // battery fraction consumed
	TimeFrameHours float64   `json:"time_frame_hours"`
	ReminderCount  int       `json:"reminder_count"`
	At             time.Time `json:"at"`
}

// EMA decay weights for the learning step. All updates are bounded:
// no field accumulates without decay.
const (
	accuracyDecay = 0.9
	patternDecay  = 0.95
)

// ApplyObservation is the pure learning step: it returns updated copies
// of the pattern and model, leaving the inputs untouched. The store layer
// performs the atomic replace-on-write.
func ApplyObservation(p UsagePattern, m PredictionModel, obs Observation) (UsagePattern, PredictionModel) {
	if obs.TimeFrameHours <= 0 {
		obs.TimeFrameHours = 1
	}
	if obs.At.IsZero() {
		obs.At = time.Now()
	}
	actual := clamp01(obs.Actual)

	// Model accuracy: compare the horizon-scaled prediction to reality.
	predicted := m.NextHourUsage * obs.TimeFrameHours
	errMag := math.Abs(actual - predicted)
	if errMag > 1 {
		errMag = 1
	}
	m.Accuracy = clamp01(m.Accuracy*accuracyDecay + (1-errMag)*(1-accuracyDecay))

	// Advance the smoothing state with the hourly-normalized drain.
	hourly := actual / obs.TimeFrameHours
	level := m.feature(featLevel, hourly)
	trend := m.feature(featTrend, 0)
	samples := m.feature(featSamples, 0)
	level, trend = smooth(level, trend, hourly)
	samples++

	m.Features = setFeature(m.Features, featLevel, level)
	m.Features = setFeature(m.Features, featTrend, trend)
	m.Features = setFeature(m.Features, featSamples, samples)
	m.NextHourUsage, m.Next6HourUsage, m.Next24HourUsage = forecastHorizons(level, trend)

	// Confidence grows with absorbed observations, tempered by accuracy.
	m.Confidence = clamp01((0.3 + 0.7*math.Min(samples/48, 1)) * (0.5 + 0.5*m.Accuracy))
	m.UpdatedAt = obs.At

	// Pattern: daily usage and per-reminder impact, both EMA.
	daily := actual * 24 / obs.TimeFrameHours
	p.AverageDailyUsage = p.AverageDailyUsage*patternDecay + daily*(1-patternDecay)

	perReminder := actual / math.Max(float64(obs.ReminderCount), 1)
	p.ReminderBatteryImpact = p.ReminderBatteryImpact*patternDecay + perReminder*(1-patternDecay)

	p.PeakUsage = updatePeak(p.PeakUsage, obs.At.Hour(), hourly)
	p.LastAnalyzed = obs.At

	return p, m
}

// setFeature returns a copy of features with the named value replaced,
// appending it if absent.
func setFeature(features []Feature, name string, value float64) []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Feature{Name: name, Value: value})
}

// updatePeak blends an hourly drain sample into the per-hour peak list.
func updatePeak(peaks []PeakUsage, hour int, fraction float64) []PeakUsage {
	out := make([]PeakUsage, len(peaks))
	copy(out, peaks)
	for i := range out {
		if out[i].Hour == hour {
			out[i].Fraction = out[i].Fraction*patternDecay + fraction*(1-patternDecay)
			return out
		}
	}
	return append(out, PeakUsage{Hour: hour, Fraction: fraction})
}
