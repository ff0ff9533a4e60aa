package doze

import (
	"context"
	"testing"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/store"
)

func TestScheduleAlarm_ActiveKeepsRequestedTier(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	trigger := time.Now().Add(time.Hour)
	a, warned := g.ScheduleAlarm(ctx, "a1", trigger, AlarmOptions{
		Priority: battery.PriorityMedium,
		Tier:     TierExact,
	})
	if warned {
		t.Error("active device should not warn")
	}
	if a.Tier != TierExact {
		t.Errorf("tier = %s, want exact", a.Tier)
	}
	if a.AllowWhileIdle {
		t.Error("exact alarm should not be flagged allow-while-idle")
	}
	if !a.TriggerTime.Equal(trigger) {
		t.Errorf("trigger time changed to %s", a.TriggerTime)
	}
}

func TestScheduleAlarm_IdleCriticalUpgradesToWhileIdle(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)
	g.SetIdleState(ctx, StateIdle)

	trigger := time.Now().Add(2 * time.Hour)
	a, warned := g.ScheduleAlarm(ctx, "dose", trigger, AlarmOptions{
		Priority: battery.PriorityCritical,
		Tier:     TierExact,
		Wakeup:   true,
	})
	if warned {
		t.Error("critical alarm should not warn")
	}
	if a.Tier != TierWhileIdle {
		t.Errorf("tier = %s, want while_idle", a.Tier)
	}
	if !a.AllowWhileIdle {
		t.Error("while_idle alarm must be allowed during idle")
	}
	if !a.TriggerTime.Equal(trigger) {
		t.Errorf("trigger time changed to %s, downgrades never move the time", a.TriggerTime)
	}
}

func TestScheduleAlarm_IdleDowngradesToInexact(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)
	g.SetIdleState(ctx, StateIdle)

	a, warned := g.ScheduleAlarm(ctx, "a1", time.Now().Add(time.Hour), AlarmOptions{
		Priority: battery.PriorityMedium,
		Tier:     TierExact,
	})
	if warned {
		t.Error("permitted downgrade should not warn")
	}
	if a.Tier != TierInexact {
		t.Errorf("tier = %s, want inexact", a.Tier)
	}
}

func TestScheduleAlarm_DowngradeForbiddenWarns(t *testing.T) {
	ctx := context.Background()
	cfg := testDozeConfig()
	cfg.AllowInexactDowngrade = false
	g := NewGate(ctx, cfg, store.NewMemKV())
	g.SetIdleState(ctx, StateIdle)

	a, warned := g.ScheduleAlarm(ctx, "a1", time.Now().Add(time.Hour), AlarmOptions{
		Priority: battery.PriorityMedium,
		Tier:     TierExact,
	})
	if !warned {
		t.Error("forbidden downgrade should warn")
	}
	if a.Tier != TierExact {
		t.Errorf("tier = %s, requested tier should stand", a.Tier)
	}
}

func TestScheduleAlarm_SameIDReplaces(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	first := time.Now().Add(time.Hour)
	second := time.Now().Add(2 * time.Hour)
	g.ScheduleAlarm(ctx, "a1", first, AlarmOptions{Priority: battery.PriorityMedium})
	g.ScheduleAlarm(ctx, "a1", second, AlarmOptions{Priority: battery.PriorityHigh})

	alarms := g.Alarms()
	if len(alarms) != 1 {
		t.Fatalf("got %d alarms after re-scheduling, want 1", len(alarms))
	}
	if !alarms[0].TriggerTime.Equal(second) {
		t.Errorf("alarm kept old trigger %s", alarms[0].TriggerTime)
	}
	if alarms[0].Priority != battery.PriorityHigh {
		t.Errorf("alarm kept old priority %s", alarms[0].Priority)
	}
}

func TestCancelAlarm_RemovesByID(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	g.ScheduleAlarm(ctx, "a1", time.Now().Add(time.Hour), AlarmOptions{})
	g.ScheduleAlarm(ctx, "a2", time.Now().Add(time.Hour), AlarmOptions{})
	g.CancelAlarm(ctx, "a1")

	alarms := g.Alarms()
	if len(alarms) != 1 || alarms[0].ID != "a2" {
		t.Errorf("alarms after cancel = %v", alarms)
	}
}

func TestFireDueAlarms_IdleHoldsNonWhileIdleAlarms(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	var firedIDs []string
	record := func(id string) func() {
		return func() { firedIDs = append(firedIDs, id) }
	}

	// Schedule while active so neither alarm is downgraded, then go idle.
	g.ScheduleAlarm(ctx, "routine", time.Now().Add(-time.Minute), AlarmOptions{
		Priority: battery.PriorityMedium,
		Callback: record("routine"),
	})
	g.SetIdleState(ctx, StateIdle)
	g.ScheduleAlarm(ctx, "critical", time.Now().Add(-time.Minute), AlarmOptions{
		Priority: battery.PriorityCritical,
		Callback: record("critical"),
	})

	g.Tick(ctx, time.Now())
	if len(firedIDs) != 1 || firedIDs[0] != "critical" {
		t.Fatalf("idle tick fired %v, want only the while_idle alarm", firedIDs)
	}

	// The held alarm fires once the device wakes.
	g.SetIdleState(ctx, StateActive)
	g.Tick(ctx, time.Now())
	if len(firedIDs) != 2 || firedIDs[1] != "routine" {
		t.Errorf("post-idle tick fired %v, want the held alarm", firedIDs)
	}
}

func TestFireDueAlarms_RepeatingAlarmReschedules(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	fired := 0
	trigger := time.Now().Add(-10 * time.Minute)
	g.ScheduleAlarm(ctx, "daily-dose", trigger, AlarmOptions{
		Priority: battery.PriorityHigh,
		Tier:     TierRepeating,
		Interval: time.Hour,
		Callback: func() { fired++ },
	})

	now := time.Now()
	g.Tick(ctx, now)
	if fired != 1 {
		t.Fatalf("repeating alarm fired %d times, want 1", fired)
	}

	alarms := g.Alarms()
	if len(alarms) != 1 {
		t.Fatalf("got %d alarms after fire, repeating alarm should stay scheduled", len(alarms))
	}
	next := alarms[0]
	if next.ID != "daily-dose" || next.Interval != time.Hour {
		t.Errorf("rescheduled alarm = %+v", next)
	}
	if !next.TriggerTime.Equal(trigger.Add(time.Hour)) {
		t.Errorf("next trigger = %s, want %s", next.TriggerTime, trigger.Add(time.Hour))
	}

	// Same alarm fires again once the next trigger passes.
	g.Tick(ctx, now.Add(time.Hour))
	if fired != 2 {
		t.Errorf("repeating alarm fired %d times after second tick, want 2", fired)
	}
}

func TestScheduleAlarm_RepeatingDefaultsToDailyInterval(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	a, _ := g.ScheduleAlarm(ctx, "a1", time.Now().Add(time.Hour), AlarmOptions{
		Tier: TierRepeating,
	})
	if a.Interval != 24*time.Hour {
		t.Errorf("interval = %s, want 24h default", a.Interval)
	}
}

func TestFireDueAlarms_FutureAlarmsWait(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	fired := false
	g.ScheduleAlarm(ctx, "later", time.Now().Add(time.Hour), AlarmOptions{
		Callback: func() { fired = true },
	})
	g.Tick(ctx, time.Now())
	if fired {
		t.Error("future alarm fired early")
	}
	if len(g.Alarms()) != 1 {
		t.Error("future alarm was removed")
	}
}
