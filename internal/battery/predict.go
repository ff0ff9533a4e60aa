package battery

import (
	"time"
)

// LifePrediction estimates how long the battery will last at the current
// drain rate under the active optimization level.
type LifePrediction struct {
	Charging       bool      `json:"charging"`
	HoursRemaining float64   `json:"hours_remaining"`
	WillLastUntil  time.Time `json:"will_last_until"`
	Confidence     float64   `json:"confidence"`
}

// chargingHours stands in for "effectively unlimited" while on power.
const chargingHours = 24 * 365

// minHourlyRate is the floor on the derived drain rate (percent points
// per hour); without it a quiet history would predict unbounded life.
const minHourlyRate = 1.0

// PredictBatteryLife estimates remaining battery life from the last 24
// hours of recorded operation costs, adjusted for the savings of the
// active optimization level. Confidence grows with the amount of real
// usage history, saturating at 24 hours.
func (s *Supervisor) PredictBatteryLife() LifePrediction {
	now := time.Now()
	snap := Read(s.probe)

	if snap.State.Charging() {
		return LifePrediction{
			Charging:       true,
			HoursRemaining: chargingHours,
			WillLastUntil:  now.Add(chargingHours * time.Hour),
			Confidence:     1,
		}
	}

	s.mu.Lock()
	var total float64
	var oldest time.Time
	for _, c := range s.costs {
		if oldest.IsZero() || c.at.Before(oldest) {
			oldest = c.at
		}
		total += c.cost
	}
	savings := s.posture.EstimatedSavings
	s.mu.Unlock()

	spanHours := 0.0
	if !oldest.IsZero() {
		spanHours = now.Sub(oldest).Hours()
		if spanHours > 24 {
			spanHours = 24
		}
	}

	rate := minHourlyRate
	if spanHours > 0 {
		if r := total / spanHours; r > rate {
			rate = r
		}
	}

	adjusted := rate - savings
	if adjusted < 0.1 {
		adjusted = 0.1
	}

	hours := snap.Level * 100 / adjusted
	confidence := 0.2 + 0.75*(spanHours/24)
	if confidence > 0.95 {
		confidence = 0.95
	}

	return LifePrediction{
		HoursRemaining: hours,
		WillLastUntil:  now.Add(time.Duration(hours * float64(time.Hour))),
		Confidence:     confidence,
	}
}
