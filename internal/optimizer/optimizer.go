package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/config"
	"github.com/lazylmf-ai/powersched/internal/energy"
	"github.com/lazylmf-ai/powersched/internal/strategy"
)

// BatterySource provides the battery view an optimization pass snapshots
// at its start. *battery.Supervisor satisfies it.
type BatterySource interface {
	Posture() battery.Posture
	Snapshot() battery.Snapshot
}

// IdleSource reports whether the device is currently in an idle state.
// *doze.Gate satisfies it.
type IdleSource interface {
	Idle() bool
}

// Optimizer is the central orchestrator: for a batch of pending
// reminders it produces one scheduling decision per reminder, then
// merges nearby decisions into delivery batches. It owns no persistent
// state of its own.
type Optimizer struct {
	cfg     config.Scheduler
	catalog *strategy.Catalog
	energy  *energy.Store
	batt    BatterySource
	idle    IdleSource      // optional
	oracle  RiskOracle      // optional; DefaultRisk without one
	timing  TimingPredicate // optional; nil means nothing is forbidden
}

// New creates an Optimizer over the given collaborators.
func New(cfg config.Scheduler, catalog *strategy.Catalog, es *energy.Store, batt BatterySource) *Optimizer {
	return &Optimizer{cfg: cfg, catalog: catalog, energy: es, batt: batt}
}

// WithIdleSource attaches an idle-state source consulted per pass.
func (o *Optimizer) WithIdleSource(idle IdleSource) *Optimizer {
	o.idle = idle
	return o
}

// WithOracle attaches an adherence risk oracle.
func (o *Optimizer) WithOracle(oracle RiskOracle) *Optimizer {
	o.oracle = oracle
	return o
}

// WithTimingPredicate attaches the opaque timing-constraint predicate.
func (o *Optimizer) WithTimingPredicate(p TimingPredicate) *Optimizer {
	o.timing = p
	return o
}

// Optimize produces a scheduling decision for every reminder in the
// batch. Battery and idle state are read once at the start of the pass,
// so a single run sees a consistent view even if state changes
// concurrently. The pass never hard-fails: collaborator errors degrade
// to documented fallbacks.
func (o *Optimizer) Optimize(ctx context.Context, userID string, reminders []Reminder) Result {
	result := Result{Summary: Summary{StrategyBreakdown: map[string]int{}, CulturalConstraintsRespected: true}}
	if len(reminders) == 0 {
		return result
	}

	// Immutable snapshots for the whole pass.
	snap := o.batt.Snapshot()
	posture := o.batt.Posture()
	idle := o.idle != nil && o.idle.Idle()

	pattern := o.energy.PatternFor(ctx, userID)
	model := o.energy.ModelFor(ctx, userID)

	recentRisk := o.riskOf(ctx, userID, reminders[0].MedicationID, reminders[0].ScheduledTime)
	timingSensitive := false
	for _, r := range reminders {
		if len(r.TimingConstraints) > 0 {
			timingSensitive = true
			break
		}
	}

	strat := o.catalog.Select(strategy.Conditions{
		BatteryLevel:    snap.Level,
		ReminderCount:   len(reminders),
		RecentRisk:      recentRisk,
		TimingSensitive: timingSensitive,
	})
	shift := forAlgorithm(strat.Algorithm)

	decisions := make([]Decision, 0, len(reminders))
	for _, r := range reminders {
		decisions = append(decisions, o.decide(r, strat, shift, pattern, model, posture, idle))
	}

	decisions = mergeBatches(decisions, o.cfg.BatchWindow())

	// Batching may pull a clustered member ahead of its original slot;
	// re-clamp so the invariant holds for every decision.
	for i := range decisions {
		o.clamp(&decisions[i])
	}

	// Assess adherence at the final times and aggregate.
	var totalReduction, totalImpact, totalDelay float64
	optimized := 0
	for i := range decisions {
		d := &decisions[i]
		d.AdherenceRisk = o.riskOf(ctx, userID, d.MedicationID, d.OptimizedTime)
		impact := delayImpact(d.Delay())
		totalImpact += impact
		totalReduction += d.BatteryImpactReduction
		totalDelay += d.Delay().Minutes()
		if !d.OptimizedTime.Equal(d.OriginalTime) {
			optimized++
		}
		if !d.ConstraintsSatisfied {
			result.Summary.CulturalConstraintsRespected = false
		}
	}

	n := float64(len(decisions))
	result.OptimizedSchedule = decisions
	result.BatteryReduction = totalReduction
	result.AdherenceImpact = totalImpact / n
	result.Summary.TotalReminders = len(reminders)
	result.Summary.OptimizedReminders = optimized
	result.Summary.BatteryReduction = totalReduction
	result.Summary.AdherenceImpact = result.AdherenceImpact
	result.Summary.AverageDelayMinutes = totalDelay / n
	result.Summary.StrategyBreakdown[strat.Name] = len(decisions)
	result.Summary.UserSatisfactionEstimate = satisfactionEstimate(strat, result.AdherenceImpact, totalDelay/n)

	o.catalog.RecordOutcome(ctx, strat.Name, totalReduction, result.AdherenceImpact, result.Summary.UserSatisfactionEstimate)

	return result
}

// decide produces the pre-merge decision for one reminder.
func (o *Optimizer) decide(r Reminder, strat strategy.Strategy, shift shiftFunc,
	pattern energy.UsagePattern, model energy.PredictionModel,
	posture battery.Posture, idle bool) Decision {

	d := Decision{
		ReminderID:           r.ID,
		MedicationID:         r.MedicationID,
		OriginalTime:         r.ScheduledTime,
		Strategy:             strat.Name,
		ConstraintsSatisfied: true,
	}

	// Critical reminders are never retimed for battery reasons.
	if r.Priority == battery.PriorityCritical {
		d.OptimizedTime = r.ScheduledTime
		d.Confidence = 1
		d.Reasoning = append(d.Reasoning, "critical priority, delivery time preserved")
		return d
	}

	newTime, reduction := shift(shiftInput{
		reminder: r,
		params:   strat.Params,
		pattern:  pattern,
		model:    model,
		maxDelay: o.cfg.MaxDelay(),
	})
	d.OptimizedTime = newTime
	d.BatteryImpactReduction = reduction
	d.Reasoning = append(d.Reasoning, fmt.Sprintf("%s algorithm shifted delivery by %s",
		strat.Algorithm, d.Delay().Round(time.Minute)))

	if posture.Active {
		d.Reasoning = append(d.Reasoning, fmt.Sprintf("%s battery optimization active", posture.Level))
	}
	if idle {
		d.Reasoning = append(d.Reasoning, "device idle, delivery will use an idle-compliant alarm")
	}

	o.clamp(&d)
	o.respectTiming(&d, r)

	d.Confidence = clamp01(model.Confidence*0.6 + strat.Performance.UserSatisfaction*0.4)
	return d
}

// clamp enforces the decision invariant: never earlier than the original
// time minus the tolerance, never deferred past the maximum delay.
// Violations are programming errors in an algorithm variant; they are
// corrected and recorded rather than allowed to crash the batch.
func (o *Optimizer) clamp(d *Decision) {
	earliest := d.OriginalTime.Add(-o.cfg.Tolerance())
	latest := d.OriginalTime.Add(o.cfg.MaxDelay())
	if d.OptimizedTime.Before(earliest) {
		d.OptimizedTime = d.OriginalTime
		d.Reasoning = append(d.Reasoning, "computed time preceded the scheduled time, clamped to original")
	}
	if d.OptimizedTime.After(latest) {
		d.OptimizedTime = latest
		d.Reasoning = append(d.Reasoning, "computed time exceeded the maximum delay, clamped to limit")
	}
}

// respectTiming nudges a decision forward past forbidden times, within
// the delay budget. The predicate is the opaque cultural/timing check.
func (o *Optimizer) respectTiming(d *Decision, r Reminder) {
	if o.timing == nil || len(r.TimingConstraints) == 0 {
		return
	}
	if !o.timing(d.OptimizedTime, r.TimingConstraints) {
		return
	}

	latest := d.OriginalTime.Add(o.cfg.MaxDelay())
	for t := d.OptimizedTime.Add(15 * time.Minute); !t.After(latest); t = t.Add(15 * time.Minute) {
		if !o.timing(t, r.TimingConstraints) {
			d.OptimizedTime = t
			d.Reasoning = append(d.Reasoning, "moved past a forbidden time window")
			return
		}
	}
	// No allowed slot in the window; keep the time but flag the breach.
	d.ConstraintsSatisfied = false
	d.Reasoning = append(d.Reasoning, "no allowed time within the delay budget, constraints unmet")
}

// riskOf consults the oracle, degrading to DefaultRisk on any failure.
func (o *Optimizer) riskOf(ctx context.Context, userID, medicationID string, t time.Time) float64 {
	if o.oracle == nil {
		return DefaultRisk
	}
	risk, err := o.oracle.RiskOfMissing(ctx, userID, medicationID, t)
	if err != nil {
		return DefaultRisk
	}
	return clamp01(risk)
}

// delayImpact maps a delay to its estimated adherence impact in percent.
// Small nudges toward better timing slightly improve effective adherence.
func delayImpact(delay time.Duration) float64 {
	switch {
	case delay > time.Hour:
		return -10
	case delay >= 30*time.Minute:
		return -5
	default:
		return 2
	}
}

// satisfactionEstimate blends the strategy's observed satisfaction with
// how disruptive this pass was.
func satisfactionEstimate(strat strategy.Strategy, adherenceImpact, avgDelayMinutes float64) float64 {
	v := strat.Performance.UserSatisfaction
	if adherenceImpact < 0 {
		v += adherenceImpact / 100
	}
	v -= avgDelayMinutes / 600
	return clamp01(v)
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
