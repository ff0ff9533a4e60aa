package doze

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/store"
)

// WindowState is the lifecycle state of a maintenance window.
type WindowState string

// Maintenance window lifecycle: scheduled -> executing -> completed|failed.
const (
	WindowScheduled WindowState = "scheduled"
	WindowExecuting WindowState = "executing"
	WindowCompleted WindowState = "completed"
	WindowFailed    WindowState = "failed"
)

// MaintenanceTask is one unit of deferred work inside a window.
type MaintenanceTask struct {
	ID                string        `json:"id"`
	Type              string        `json:"type"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	NetworkRequired   bool          `json:"network_required"`
	Critical          bool          `json:"critical"`
	Executed          bool          `json:"executed"`
	Result            string        `json:"result,omitempty"`
}

// MaintenanceWindow is a time range during which deferred tasks may run.
type MaintenanceWindow struct {
	ID       string            `json:"id"`
	Start    time.Time         `json:"start"`
	End      time.Time         `json:"end"`
	Duration time.Duration     `json:"duration"`
	Priority battery.Priority  `json:"priority"`
	Tasks    []MaintenanceTask `json:"tasks"`
	State    WindowState       `json:"state"`

	// abandoned is set when the device exits idle before all tasks ran.
	abandoned bool
}

// ScheduleMaintenanceWindow queues tasks for execution starting
// hoursFromNow. The window's span is the sum of task duration estimates.
func (g *Gate) ScheduleMaintenanceWindow(ctx context.Context, tasks []MaintenanceTask, priority battery.Priority, hoursFromNow float64) *MaintenanceWindow {
	start := time.Now().Add(time.Duration(hoursFromNow * float64(time.Hour)))
	var span time.Duration
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.New().String()
		}
		span += tasks[i].EstimatedDuration
	}
	if span <= 0 {
		span = time.Minute
	}

	w := &MaintenanceWindow{
		ID:       uuid.New().String(),
		Start:    start,
		End:      start.Add(span),
		Duration: span,
		Priority: priority,
		Tasks:    tasks,
		State:    WindowScheduled,
	}

	g.mu.Lock()
	g.windows = append(g.windows, w)
	g.mu.Unlock()

	g.persistWindows(ctx)
	return w
}

// Windows returns a snapshot of all known maintenance windows.
func (g *Gate) Windows() []MaintenanceWindow {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]MaintenanceWindow, len(g.windows))
	for i, w := range g.windows {
		out[i] = snapshotWindow(w)
	}
	return out
}

// snapshotWindow copies a window with its own task slice, so callers
// never share the live backing array with the executor.
func snapshotWindow(w *MaintenanceWindow) MaintenanceWindow {
	out := *w
	out.Tasks = make([]MaintenanceTask, len(w.Tasks))
	copy(out.Tasks, w.Tasks)
	return out
}

// executeDue promotes and runs windows whose start time has arrived.
// With flush set (idle exit), the end bound is ignored: every window
// whose start has passed runs immediately.
func (g *Gate) executeDue(ctx context.Context, now time.Time, flush bool) {
	g.mu.Lock()
	var due []*MaintenanceWindow
	for _, w := range g.windows {
		if w.State != WindowScheduled || now.Before(w.Start) {
			continue
		}
		if !flush && now.After(w.End) {
			// Missed its window entirely; still run it rather than
			// strand the work, same as the idle-exit flush.
			due = append(due, w)
			continue
		}
		due = append(due, w)
	}
	for _, w := range due {
		w.State = WindowExecuting
		w.abandoned = false
	}
	runner := g.runner
	g.mu.Unlock()

	for _, w := range due {
		g.runWindow(ctx, w, runner)
	}
	if len(due) > 0 {
		g.persistWindows(ctx)
	}
}

// runWindow executes a window's tasks sequentially. Any task error or an
// abandonment mid-window marks the window failed; executed tasks are not
// rolled back.
func (g *Gate) runWindow(ctx context.Context, w *MaintenanceWindow, runner TaskRunner) {
	failed := false
	for i := range w.Tasks {
		g.mu.Lock()
		if w.abandoned || ctx.Err() != nil {
			g.mu.Unlock()
			failed = true
			break
		}
		// Run on a copy so the runner never touches shared state while
		// unlocked; results are written back under the lock.
		task := w.Tasks[i]
		g.mu.Unlock()
		if task.Executed {
			continue
		}

		err := runner(ctx, &task)

		g.mu.Lock()
		if err != nil {
			w.Tasks[i].Result = err.Error()
			g.mu.Unlock()
			failed = true
			break
		}
		task.Executed = true
		if task.Result == "" {
			task.Result = "ok"
		}
		w.Tasks[i] = task
		g.mu.Unlock()
	}

	g.mu.Lock()
	if failed {
		w.State = WindowFailed
	} else {
		w.State = WindowCompleted
	}
	recurring := g.cfg.RecurringMaintenance
	interval := g.cfg.MaintenanceInterval()
	var next []MaintenanceTask
	if recurring && !failed {
		next = make([]MaintenanceTask, len(w.Tasks))
		copy(next, w.Tasks)
		for i := range next {
			next[i].Executed = false
			next[i].Result = ""
		}
	}
	g.mu.Unlock()

	if next != nil {
		g.ScheduleMaintenanceWindow(ctx, next, w.Priority, interval.Hours())
	}
}

// persistWindows writes the window set best-effort.
func (g *Gate) persistWindows(ctx context.Context) {
	if g.kv == nil {
		return
	}
	g.mu.Lock()
	snapshot := make([]MaintenanceWindow, len(g.windows))
	for i, w := range g.windows {
		snapshot[i] = snapshotWindow(w)
	}
	g.mu.Unlock()
	if data, err := json.Marshal(snapshot); err == nil {
		_ = g.kv.Set(ctx, store.KeyMaintenance, data)
	}
}
