package energy

// Double exponential smoothing (Holt) over hourly drain observations.
// The smoothed level and trend live in the model's feature vector, so
// the model record itself is the complete estimator state.

const (
	// smoothingAlpha weights new observations into the level.
	smoothingAlpha = 0.3
	// smoothingBeta weights level changes into the trend.
	smoothingBeta = 0.1
	// smoothingPhi damps the trend so a steady drain rate settles
	// without the forecast swinging past it.
	smoothingPhi = 0.5
)

// smooth advances the level/trend state with one hourly drain observation.
func smooth(level, trend, hourlyDrain float64) (newLevel, newTrend float64) {
	newLevel = smoothingAlpha*hourlyDrain + (1-smoothingAlpha)*(level+smoothingPhi*trend)
	newTrend = smoothingBeta*(newLevel-level) + (1-smoothingBeta)*smoothingPhi*trend
	if newLevel < 0 {
		newLevel = 0
	}
	return newLevel, newTrend
}

// forecastHorizons projects cumulative drain over the next 1, 6 and 24
// hours from the current level and damped trend, each clamped to [0, 1].
func forecastHorizons(level, trend float64) (h1, h6, h24 float64) {
	cumulative := func(hours int) float64 {
		total := 0.0
		damp, dampSum := 1.0, 0.0
		for h := 1; h <= hours; h++ {
			damp *= smoothingPhi
			dampSum += damp
			step := level + trend*dampSum
			if step < 0 {
				step = 0
			}
			total += step
		}
		return clamp01(total)
	}
	return cumulative(1), cumulative(6), cumulative(24)
}

// Forecast re-derives the three horizon predictions from a model's
// feature state without mutating it.
func Forecast(m PredictionModel) (h1, h6, h24 float64) {
	level := m.feature(featLevel, 0.0125)
	trend := m.feature(featTrend, 0)
	return forecastHorizons(level, trend)
}
