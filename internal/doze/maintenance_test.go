package doze

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/store"
)

func TestScheduleMaintenanceWindow_SpanFromTaskEstimates(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	w := g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: 5 * time.Minute},
		{Type: "cleanup", EstimatedDuration: 2 * time.Minute},
	}, battery.PriorityMedium, 1)

	if w.State != WindowScheduled {
		t.Errorf("state = %s, want scheduled", w.State)
	}
	if w.Duration != 7*time.Minute {
		t.Errorf("duration = %s, want the 7m task sum", w.Duration)
	}
	if !w.End.Equal(w.Start.Add(7 * time.Minute)) {
		t.Errorf("end = %s, want start + duration", w.End)
	}
	for _, task := range w.Tasks {
		if task.ID == "" {
			t.Error("tasks without ids should be assigned one")
		}
	}
}

func TestWindows_SnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, 1)

	snap := g.Windows()
	snap[0].Tasks[0].Executed = true
	snap[0].Tasks[0].Result = "scribbled"

	fresh := g.Windows()[0].Tasks[0]
	if fresh.Executed || fresh.Result != "" {
		t.Errorf("mutating a snapshot leaked into gate state: %+v", fresh)
	}
}

func TestExecuteDue_RunsTasksSequentially(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	var order []string
	g.SetTaskRunner(func(_ context.Context, task *MaintenanceTask) error {
		order = append(order, task.Type)
		return nil
	})

	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
		{Type: "cleanup", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, -1)

	g.Tick(ctx, time.Now())

	if len(order) != 2 || order[0] != "sync" || order[1] != "cleanup" {
		t.Errorf("task order = %v, want [sync cleanup]", order)
	}
	w := g.Windows()[0]
	if w.State != WindowCompleted {
		t.Errorf("state = %s, want completed", w.State)
	}
	for _, task := range w.Tasks {
		if !task.Executed || task.Result != "ok" {
			t.Errorf("task %s not marked executed: %+v", task.Type, task)
		}
	}
}

func TestExecuteDue_NotDueYet(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	ran := false
	g.SetTaskRunner(func(context.Context, *MaintenanceTask) error {
		ran = true
		return nil
	})
	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, 2)

	g.Tick(ctx, time.Now())
	if ran {
		t.Error("window ran before its start time")
	}
	if got := g.Windows()[0].State; got != WindowScheduled {
		t.Errorf("state = %s, want still scheduled", got)
	}
}

func TestRunWindow_TaskErrorMarksFailed(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	g.SetTaskRunner(func(_ context.Context, task *MaintenanceTask) error {
		if task.Type == "upload" {
			return errors.New("network unreachable")
		}
		return nil
	})

	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
		{Type: "upload", EstimatedDuration: time.Minute},
		{Type: "cleanup", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, -1)

	g.Tick(ctx, time.Now())

	w := g.Windows()[0]
	if w.State != WindowFailed {
		t.Fatalf("state = %s, want failed", w.State)
	}
	// Work before the failure is not rolled back; work after it never ran.
	if !w.Tasks[0].Executed {
		t.Error("task before the failure should stay executed")
	}
	if w.Tasks[1].Executed {
		t.Error("failing task should not be marked executed")
	}
	if w.Tasks[1].Result != "network unreachable" {
		t.Errorf("failing task result = %q", w.Tasks[1].Result)
	}
	if w.Tasks[2].Executed {
		t.Error("task after the failure should not have run")
	}
}

func TestIdleExit_FlushesDueWindows(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)

	ran := false
	g.SetTaskRunner(func(context.Context, *MaintenanceTask) error {
		ran = true
		return nil
	})

	g.SetIdleState(ctx, StateIdle)
	// The window opened while the device was idle; no tick has run it.
	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, -1)

	g.SetIdleState(ctx, StateActive)

	if !ran {
		t.Error("idle exit should flush the due window")
	}
	if got := g.Windows()[0].State; got != WindowCompleted {
		t.Errorf("flushed window state = %s, want completed", got)
	}
}

func TestIdleExit_AbandonsExecutingWindow(t *testing.T) {
	ctx := context.Background()
	g := newTestGate(t)
	g.SetIdleState(ctx, StateIdle)

	// The first task yanks the device out of idle mid-window; the second
	// must not run.
	g.SetTaskRunner(func(_ context.Context, task *MaintenanceTask) error {
		if task.Type == "sync" {
			g.SetIdleState(ctx, StateActive)
		}
		return nil
	})

	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
		{Type: "cleanup", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, -1)

	g.Tick(ctx, time.Now())

	w := g.Windows()[0]
	if w.State != WindowFailed {
		t.Errorf("abandoned window state = %s, want failed", w.State)
	}
	if !w.Tasks[0].Executed {
		t.Error("completed task should stay executed after abandonment")
	}
	if w.Tasks[1].Executed {
		t.Error("abandonment should stop the remaining tasks")
	}
}

func TestRunWindow_RecurringReschedules(t *testing.T) {
	ctx := context.Background()
	cfg := testDozeConfig()
	cfg.RecurringMaintenance = true
	cfg.MaintenanceIntervalH = 6
	g := NewGate(ctx, cfg, store.NewMemKV())

	g.ScheduleMaintenanceWindow(ctx, []MaintenanceTask{
		{Type: "sync", EstimatedDuration: time.Minute},
	}, battery.PriorityMedium, -1)

	g.Tick(ctx, time.Now())

	windows := g.Windows()
	if len(windows) != 2 {
		t.Fatalf("got %d windows after a recurring run, want completed + rescheduled", len(windows))
	}
	next := windows[1]
	if next.State != WindowScheduled {
		t.Errorf("follow-up state = %s, want scheduled", next.State)
	}
	if next.Tasks[0].Executed {
		t.Error("follow-up tasks should start unexecuted")
	}
	until := time.Until(next.Start)
	if until < 5*time.Hour || until > 7*time.Hour {
		t.Errorf("follow-up starts in %s, want about 6h", until)
	}
}
