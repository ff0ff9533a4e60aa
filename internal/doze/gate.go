package doze

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/config"
	"github.com/lazylmf-ai/powersched/internal/store"
)

// TaskRunner executes one maintenance task. Tasks are expected to be
// idempotent at the collaborator level; a failed or abandoned window
// never rolls back tasks that already ran.
type TaskRunner func(ctx context.Context, task *MaintenanceTask) error

// Gate owns idle-mode compliance: the tracked doze status, constraint
// checks for operations, and the maintenance-window and alarm lifecycles.
type Gate struct {
	cfg config.Doze
	kv  store.KV

	mu      sync.Mutex
	status  Status
	windows []*MaintenanceWindow
	alarms  []*Alarm
	runner  TaskRunner
}

// NewGate creates a Gate, restoring persisted doze status if available.
func NewGate(ctx context.Context, cfg config.Doze, kv store.KV) *Gate {
	g := &Gate{
		cfg: cfg,
		kv:  kv,
		status: Status{
			IdleEnabled: true,
			Whitelisted: cfg.Whitelisted,
			State:       StateActive,
			Bucket:      BucketUnknown,
		},
		runner: func(context.Context, *MaintenanceTask) error { return nil },
	}
	if kv != nil {
		if data, err := kv.Get(ctx, store.KeyDozeStatus); err == nil && data != nil {
			var status Status
			if json.Unmarshal(data, &status) == nil {
				status.Whitelisted = cfg.Whitelisted
				g.status = status
			}
		}
	}
	return g
}

// SetTaskRunner installs the collaborator that executes maintenance tasks.
func (g *Gate) SetTaskRunner(r TaskRunner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r != nil {
		g.runner = r
	}
}

// Status returns the current doze status snapshot.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Idle reports whether the device is currently in the idle state.
func (g *Gate) Idle() bool {
	return g.Status().Idle()
}

// SetBucket updates the tracked standby bucket.
func (g *Gate) SetBucket(b StandbyBucket) {
	g.mu.Lock()
	g.status.Bucket = b
	g.mu.Unlock()
	g.persistStatus(context.Background())
}

// SetIdleState transitions the tracked idle sub-state. Entering idle
// stamps the entry time and session counter; leaving idle flushes every
// maintenance window whose start has passed, so deferred work is never
// stranded, and abandons windows still executing.
func (g *Gate) SetIdleState(ctx context.Context, state IdleState) {
	g.mu.Lock()
	prev := g.status.State
	if state == prev {
		g.mu.Unlock()
		return
	}
	g.status.State = state
	now := time.Now()
	if state == StateIdle {
		g.status.LastIdleEntry = now
		g.status.IdleSessions++
	}
	exitedIdle := prev == StateIdle
	if exitedIdle {
		g.status.LastIdleExit = now
		for _, w := range g.windows {
			if w.State == WindowExecuting {
				w.abandoned = true
			}
		}
	}
	g.mu.Unlock()

	g.persistStatus(ctx)

	if exitedIdle {
		// Idle exit guarantee: run everything whose window has opened,
		// regardless of the original end time.
		g.executeDue(ctx, now, true)
	}
}

// Verdict is the gate's answer to a constraint check.
type Verdict struct {
	Allowed  bool          `json:"allowed"`
	Fallback string        `json:"fallback,omitempty"`
	Tier     ExactnessTier `json:"tier,omitempty"` // for alarm operations
}

// CanExecuteOperation checks whether an operation may run under the
// current idle state.
func (g *Gate) CanExecuteOperation(op battery.OpType, priority battery.Priority) Verdict {
	status := g.Status()

	if priority == battery.PriorityCritical || !status.Idle() || status.Whitelisted {
		if op == battery.OpAlarm {
			return Verdict{Allowed: true, Tier: TierExact}
		}
		return Verdict{Allowed: true}
	}

	switch op {
	case battery.OpNetwork, battery.OpBackgroundTask, battery.OpSync:
		return Verdict{Allowed: false, Fallback: "defer to next maintenance window"}
	case battery.OpAlarm:
		// Alarms fire during idle only at reduced exactness.
		return Verdict{Allowed: true, Tier: TierInexact}
	case battery.OpLocation:
		return Verdict{Allowed: false, Fallback: "use coarse location"}
	default:
		return Verdict{Allowed: false, Fallback: "defer to next maintenance window"}
	}
}

// Run polls for due maintenance windows and alarms. Blocks until ctx is
// cancelled. The interval comes from the ticks configuration.
func (g *Gate) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Tick(ctx, time.Now())
		}
	}
}

// Tick advances time-driven work: due maintenance windows and alarms.
func (g *Gate) Tick(ctx context.Context, now time.Time) {
	g.executeDue(ctx, now, false)
	g.fireDueAlarms(now)
}

// persistStatus writes the doze status best-effort.
func (g *Gate) persistStatus(ctx context.Context) {
	if g.kv == nil {
		return
	}
	g.mu.Lock()
	data, err := json.Marshal(g.status)
	g.mu.Unlock()
	if err == nil {
		_ = g.kv.Set(ctx, store.KeyDozeStatus, data)
	}
}
