package doze

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/store"
)

// ExactnessTier describes how precisely an alarm is guaranteed to fire.
type ExactnessTier string

// Alarm exactness tiers.
const (
	TierExact     ExactnessTier = "exact"
	TierInexact   ExactnessTier = "inexact"
	TierRepeating ExactnessTier = "repeating"
	TierWhileIdle ExactnessTier = "while_idle"
)

// Alarm is one scheduled callback. A positive Interval makes the alarm
// repeating: each fire reschedules the next trigger instead of removing
// the alarm.
type Alarm struct {
	ID             string           `json:"id"`
	TriggerTime    time.Time        `json:"trigger_time"`
	Tier           ExactnessTier    `json:"tier"`
	AllowWhileIdle bool             `json:"allow_while_idle"`
	Wakeup         bool             `json:"wakeup"`
	Priority       battery.Priority `json:"priority"`
	Interval       time.Duration    `json:"interval,omitempty"`
	Callback       func()           `json:"-"`
}

// AlarmOptions configure a scheduled alarm.
type AlarmOptions struct {
	Priority battery.Priority
	Tier     ExactnessTier
	Wakeup   bool
	Interval time.Duration
	Callback func()
}

// ScheduleAlarm registers an alarm for triggerTime. While the device is
// idle and the app is not whitelisted, the exactness tier is downgraded:
// critical priority upgrades to while_idle (allowed during idle),
// everything else becomes inexact when the configuration permits; else
// the requested tier stands and warned reports the alarm may not fire
// exactly. The trigger time itself is never changed.
func (g *Gate) ScheduleAlarm(ctx context.Context, id string, triggerTime time.Time, opts AlarmOptions) (Alarm, bool) {
	tier := opts.Tier
	if tier == "" {
		tier = TierExact
	}
	interval := opts.Interval
	if tier == TierRepeating && interval <= 0 {
		interval = 24 * time.Hour
	}

	status := g.Status()
	warned := false
	if status.Idle() && !status.Whitelisted {
		switch {
		case opts.Priority == battery.PriorityCritical:
			tier = TierWhileIdle
		case g.cfg.AllowInexactDowngrade:
			tier = TierInexact
		default:
			warned = true
		}
	}

	a := &Alarm{
		ID:             id,
		TriggerTime:    triggerTime,
		Tier:           tier,
		AllowWhileIdle: tier == TierWhileIdle,
		Wakeup:         opts.Wakeup,
		Priority:       opts.Priority,
		Interval:       interval,
		Callback:       opts.Callback,
	}

	g.mu.Lock()
	// Re-scheduling an existing id replaces the previous alarm.
	replaced := false
	for i, existing := range g.alarms {
		if existing.ID == id {
			g.alarms[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		g.alarms = append(g.alarms, a)
	}
	g.mu.Unlock()

	g.persistAlarms(ctx)
	return *a, warned
}

// CancelAlarm removes an alarm by id.
func (g *Gate) CancelAlarm(ctx context.Context, id string) {
	g.mu.Lock()
	for i, a := range g.alarms {
		if a.ID == id {
			g.alarms = append(g.alarms[:i], g.alarms[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
	g.persistAlarms(ctx)
}

// Alarms returns a snapshot of scheduled alarms.
func (g *Gate) Alarms() []Alarm {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Alarm, len(g.alarms))
	for i, a := range g.alarms {
		out[i] = *a
	}
	return out
}

// fireDueAlarms invokes alarms whose trigger has passed. One-shot
// alarms are removed; repeating alarms advance their trigger by the
// interval and stay scheduled. During idle, only alarms allowed while
// idle fire; the rest wait for the idle exit tick.
func (g *Gate) fireDueAlarms(now time.Time) {
	g.mu.Lock()
	idle := g.status.Idle() && !g.status.Whitelisted
	var due []*Alarm
	var remaining []*Alarm
	for _, a := range g.alarms {
		if a.TriggerTime.After(now) {
			remaining = append(remaining, a)
			continue
		}
		if idle && !a.AllowWhileIdle {
			remaining = append(remaining, a)
			continue
		}
		due = append(due, a)
		if a.Interval > 0 {
			next := *a
			for !next.TriggerTime.After(now) {
				next.TriggerTime = next.TriggerTime.Add(a.Interval)
			}
			remaining = append(remaining, &next)
		}
	}
	g.alarms = remaining
	g.mu.Unlock()

	for _, a := range due {
		if a.Callback != nil {
			a.Callback()
		}
	}
	if len(due) > 0 {
		g.persistAlarms(context.Background())
	}
}

// persistAlarms writes the alarm set best-effort. Callbacks are process
// state and are not serialized.
func (g *Gate) persistAlarms(ctx context.Context) {
	if g.kv == nil {
		return
	}
	g.mu.Lock()
	snapshot := make([]Alarm, len(g.alarms))
	for i, a := range g.alarms {
		snapshot[i] = *a
	}
	g.mu.Unlock()
	if data, err := json.Marshal(snapshot); err == nil {
		_ = g.kv.Set(ctx, store.KeyAlarms, data)
	}
}
