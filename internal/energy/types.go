// Package energy owns per-user battery usage patterns and energy
// prediction models, including the EMA learning loop that refines them
// from observed drain.
package energy

import "time"

// PeakUsage is one (hour of day, usage fraction) sample.
type PeakUsage struct {
	Hour     int     `json:"hour"`
	Fraction float64 `json:"fraction"`
}

// ChargingWindow is an observed recurring charging period.
type ChargingWindow struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Frequency float64   `json:"frequency"` // occurrences per week
}

// UsagePattern captures a user's historical battery behavior. Records are
// never deleted, only updated in place via exponential moving averages.
type UsagePattern struct {
	UserID                string           `json:"user_id"`
	AverageDailyUsage     float64          `json:"average_daily_usage"` // battery fraction per day
	PeakUsage             []PeakUsage      `json:"peak_usage"`
	ReminderBatteryImpact float64          `json:"reminder_battery_impact"` // fraction per reminder
	BackgroundEfficiency  float64          `json:"background_efficiency"`   // 0..1
	ChargingWindows       []ChargingWindow `json:"charging_windows"`
	HealthScore           float64          `json:"health_score"` // 0..1
	LastAnalyzed          time.Time        `json:"last_analyzed"`
}

// ModelAlgorithm tags which estimator family produced a model's
// predictions. Opaque to the scheduler beyond the tag itself.
type ModelAlgorithm string

// Supported model algorithm tags.
const (
	AlgoTimeSeries ModelAlgorithm = "time_series"
	AlgoRegression ModelAlgorithm = "regression"
	AlgoEnsemble   ModelAlgorithm = "ensemble"
)

// Feature is one named, weighted model input.
type Feature struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Importance  float64 `json:"importance"`
	Description string  `json:"description"`
}

// PredictionModel holds a user's energy forecasts and model quality
// scores. The smoothing state lives in the feature vector, so the
// feature-in / three-horizon-out contract is the whole interface.
type PredictionModel struct {
	UserID          string         `json:"user_id"`
	Algorithm       ModelAlgorithm `json:"algorithm"`
	Features        []Feature      `json:"features"`
	NextHourUsage   float64        `json:"next_hour_usage"`    // fraction over next 1h
	Next6HourUsage  float64        `json:"next_6_hour_usage"`  // fraction over next 6h
	Next24HourUsage float64        `json:"next_24_hour_usage"` // fraction over next 24h
	Accuracy        float64        `json:"accuracy"`   // 0..1, EMA-updated
	Confidence      float64        `json:"confidence"` // 0..1
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Feature names used by the smoothing estimator.
const (
	featLevel   = "smoothed_hourly_drain"
	featTrend   = "drain_trend"
	featSamples = "observation_count"
)

// feature returns the named feature value, or fallback if absent.
func (m PredictionModel) feature(name string, fallback float64) float64 {
	for _, f := range m.Features {
		if f.Name == name {
			return f.Value
		}
	}
	return fallback
}

// NewUsagePattern returns the starting pattern for a user with no history.
func NewUsagePattern(userID string) UsagePattern {
	return UsagePattern{
		UserID:                userID,
		AverageDailyUsage:     0.30,
		ReminderBatteryImpact: 0.005,
		BackgroundEfficiency:  0.70,
		HealthScore:           1.0,
		LastAnalyzed:          time.Now(),
	}
}

// NewPredictionModel returns the starting model for a user with no history.
func NewPredictionModel(userID string) PredictionModel {
	initial := 0.30 / 24 // hourly share of the default daily usage
	m := PredictionModel{
		UserID:    userID,
		Algorithm: AlgoTimeSeries,
		Features: []Feature{
			{Name: featLevel, Value: initial, Importance: 0.6, Description: "smoothed hourly drain fraction"},
			{Name: featTrend, Value: 0, Importance: 0.3, Description: "hourly drain trend"},
			{Name: featSamples, Value: 0, Importance: 0.1, Description: "observations absorbed"},
		},
		Accuracy:   0.5,
		Confidence: 0.3,
		UpdatedAt:  time.Now(),
	}
	m.NextHourUsage, m.Next6HourUsage, m.Next24HourUsage = forecastHorizons(initial, 0)
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
