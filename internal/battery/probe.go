// Package battery models device battery state and the optimization
// supervisor that derives background-work restrictions from it.
package battery

import (
	"sync"
	"time"
)

// ChargeState describes the charger connection state.
type ChargeState string

// Charge states reported by a Probe.
const (
	ChargeCharging  ChargeState = "charging"
	ChargeUnplugged ChargeState = "unplugged"
	ChargeFull      ChargeState = "full"
	ChargeUnknown   ChargeState = "unknown"
)

// Charging reports whether the state counts as connected to power.
func (s ChargeState) Charging() bool {
	return s == ChargeCharging || s == ChargeFull
}

// Snapshot is a point-in-time reading of battery state.
type Snapshot struct {
	Level        float64     `json:"level"` // 0..1
	State        ChargeState `json:"state"`
	LowPowerMode bool        `json:"low_power_mode"`
	At           time.Time   `json:"at"`
}

// Probe exposes current battery state and change notifications.
// Implementations wrap a platform battery API or a simulation.
type Probe interface {
	// Level returns the current battery fraction in [0, 1].
	Level() (float64, error)
	// State returns the current charger connection state.
	State() (ChargeState, error)
	// LowPowerMode reports whether the platform low-power mode is active.
	LowPowerMode() (bool, error)
	// Subscribe registers a callback invoked on every state change and
	// returns a function that cancels the subscription.
	Subscribe(fn func(Snapshot)) (unsubscribe func())
}

// SimProbe is an in-memory Probe driven by explicit Set calls. It backs
// the simulate command and tests.
type SimProbe struct {
	mu       sync.Mutex
	level    float64
	state    ChargeState
	lowPower bool
	subs     map[int]func(Snapshot)
	nextSub  int
}

// NewSimProbe creates a SimProbe with the given initial reading.
func NewSimProbe(level float64, state ChargeState, lowPower bool) *SimProbe {
	return &SimProbe{
		level:    clamp01(level),
		state:    state,
		lowPower: lowPower,
		subs:     make(map[int]func(Snapshot)),
	}
}

// Level returns the current simulated battery fraction.
func (p *SimProbe) Level() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

// State returns the current simulated charge state.
func (p *SimProbe) State() (ChargeState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, nil
}

// LowPowerMode returns the simulated low-power-mode flag.
func (p *SimProbe) LowPowerMode() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lowPower, nil
}

// Subscribe registers a change callback.
func (p *SimProbe) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Set updates the simulated reading and notifies subscribers.
func (p *SimProbe) Set(level float64, state ChargeState, lowPower bool) {
	p.mu.Lock()
	p.level = clamp01(level)
	p.state = state
	p.lowPower = lowPower
	snap := p.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Drain lowers the simulated level by delta, keeping state unchanged.
func (p *SimProbe) Drain(delta float64) {
	p.mu.Lock()
	level := clamp01(p.level - delta)
	state := p.state
	lowPower := p.lowPower
	p.mu.Unlock()
	p.Set(level, state, lowPower)
}

// Snapshot returns the current simulated reading.
func (p *SimProbe) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *SimProbe) snapshotLocked() Snapshot {
	return Snapshot{
		Level:        p.level,
		State:        p.state,
		LowPowerMode: p.lowPower,
		At:           time.Now(),
	}
}

// Read takes a snapshot from an arbitrary probe. Probe errors degrade to
// an unknown, mid-level reading so callers always get a usable snapshot.
func Read(p Probe) Snapshot {
	snap := Snapshot{Level: 0.5, State: ChargeUnknown, At: time.Now()}
	if level, err := p.Level(); err == nil {
		snap.Level = clamp01(level)
	}
	if state, err := p.State(); err == nil {
		snap.State = state
	}
	if lowPower, err := p.LowPowerMode(); err == nil {
		snap.LowPowerMode = lowPower
	}
	return snap
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
