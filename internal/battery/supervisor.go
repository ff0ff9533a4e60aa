package battery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lazylmf-ai/powersched/internal/config"
)

// Level is the discrete optimization posture derived from battery state.
type Level string

// Optimization levels from least to most restrictive.
const (
	LevelNone         Level = "none"
	LevelConservative Level = "conservative"
	LevelModerate     Level = "moderate"
	LevelAggressive   Level = "aggressive"
)

// Restrictions are the background-work restriction flags attached to an
// optimization level.
type Restrictions struct {
	ReduceBackground    bool `json:"reduce_background"`
	ReduceSyncFrequency bool `json:"reduce_sync_frequency"`
	BatchNotifications  bool `json:"batch_notifications"`
	DeferNonCritical    bool `json:"defer_non_critical"`
	ReduceVisualEffects bool `json:"reduce_visual_effects"`
}

// Posture is the supervisor's current stance: the active level, its
// restriction bundle, and the estimated savings it buys. It is derived
// from live battery state and never treated as authoritative storage.
type Posture struct {
	Active           bool         `json:"active"`
	Level            Level        `json:"level"`
	Restrictions     Restrictions `json:"restrictions"`
	EstimatedSavings float64      `json:"estimated_savings"` // percent points per hour
}

// Transition records one actual level change with its trigger.
type Transition struct {
	At     time.Time `json:"at"`
	From   Level     `json:"from"`
	To     Level     `json:"to"`
	Reason string    `json:"reason"`
}

// LevelFor derives the optimization level from a battery snapshot.
// Pure: same inputs always yield the same level, independent of history.
func LevelFor(cfg config.Battery, snap Snapshot) Level {
	switch {
	case snap.State.Charging() || snap.Level > cfg.FullThreshold:
		return LevelNone
	case snap.Level <= cfg.CriticalThreshold || snap.LowPowerMode:
		return LevelAggressive
	case snap.Level <= cfg.LowThreshold:
		return LevelModerate
	case snap.Level <= cfg.ConservativeThreshold:
		return LevelConservative
	default:
		return LevelNone
	}
}

// RestrictionsFor returns the fixed restriction bundle for a level.
func RestrictionsFor(level Level) Restrictions {
	switch level {
	case LevelAggressive:
		return Restrictions{
			ReduceBackground:    true,
			ReduceSyncFrequency: true,
			BatchNotifications:  true,
			DeferNonCritical:    true,
			ReduceVisualEffects: true,
		}
	case LevelModerate:
		return Restrictions{
			ReduceBackground:    true,
			ReduceSyncFrequency: true,
			BatchNotifications:  true,
		}
	case LevelConservative:
		return Restrictions{ReduceSyncFrequency: true}
	default:
		return Restrictions{}
	}
}

// SavingsFor returns the fixed estimated savings (percent points per hour)
// attributed to a level.
func SavingsFor(level Level) float64 {
	switch level {
	case LevelAggressive:
		return 8.0
	case LevelModerate:
		return 5.0
	case LevelConservative:
		return 2.0
	default:
		return 0
	}
}

// PostureFor builds the full posture for a level.
func PostureFor(level Level) Posture {
	return Posture{
		Active:           level != LevelNone,
		Level:            level,
		Restrictions:     RestrictionsFor(level),
		EstimatedSavings: SavingsFor(level),
	}
}

// opCost is one recorded operation cost, used for battery-life prediction.
type opCost struct {
	at   time.Time
	cost float64 // percent points
}

// Supervisor monitors battery state, maintains the current optimization
// posture, and answers admission-control and battery-life questions.
type Supervisor struct {
	cfg   config.Battery
	probe Probe

	mu           sync.Mutex
	posture      Posture
	history      []Transition
	historyLimit int
	costs        []opCost

	// onTransition callbacks are invoked outside the lock for every
	// actual level change, in registration order.
	onTransition []func(Transition)
}

// NewSupervisor creates a Supervisor over the given probe. The initial
// posture is evaluated from the probe's current reading.
func NewSupervisor(cfg config.Battery, probe Probe, historyLimit int) *Supervisor {
	if historyLimit <= 0 {
		historyLimit = config.DefaultHistory.Limit
	}
	s := &Supervisor{
		cfg:          cfg,
		probe:        probe,
		posture:      PostureFor(LevelNone),
		historyLimit: historyLimit,
	}
	s.Evaluate(Read(probe))
	return s
}

// OnTransition adds a callback invoked for every actual level change.
func (s *Supervisor) OnTransition(fn func(Transition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTransition = append(s.onTransition, fn)
}

// Evaluate recomputes the posture from a snapshot. Re-entering the same
// level is a no-op; actual transitions are appended to the bounded
// history log with the triggering battery percentage as the reason.
func (s *Supervisor) Evaluate(snap Snapshot) Posture {
	level := LevelFor(s.cfg, snap)

	s.mu.Lock()
	if level == s.posture.Level {
		posture := s.posture
		s.mu.Unlock()
		return posture
	}

	t := Transition{
		At:     time.Now(),
		From:   s.posture.Level,
		To:     level,
		Reason: fmt.Sprintf("battery at %.0f%%", snap.Level*100),
	}
	s.history = append(s.history, t)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	s.posture = PostureFor(level)
	posture := s.posture
	callbacks := make([]func(Transition), len(s.onTransition))
	copy(callbacks, s.onTransition)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(t)
	}
	return posture
}

// Snapshot reads the probe's current battery state.
func (s *Supervisor) Snapshot() Snapshot {
	return Read(s.probe)
}

// Posture returns the current posture snapshot.
func (s *Supervisor) Posture() Posture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posture
}

// History returns a copy of the recorded transitions, oldest first.
func (s *Supervisor) History() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.history))
	copy(out, s.history)
	return out
}

// RecordOperationCost records the battery cost (percent points) of a
// completed operation. Costs older than 24 hours are dropped.
func (s *Supervisor) RecordOperationCost(cost float64) {
	if cost <= 0 {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs = append(s.costs, opCost{at: now, cost: cost})
	cutoff := now.Add(-24 * time.Hour)
	for len(s.costs) > 0 && s.costs[0].at.Before(cutoff) {
		s.costs = s.costs[1:]
	}
}

// Run subscribes to the probe and re-evaluates the posture on every
// battery-state change. Blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	unsubscribe := s.probe.Subscribe(func(snap Snapshot) {
		s.Evaluate(snap)
	})
	defer unsubscribe()

	s.Evaluate(Read(s.probe))
	<-ctx.Done()
	return ctx.Err()
}
