package app

import (
	"fmt"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/doze"
	"github.com/lazylmf-ai/powersched/internal/energy"
	"github.com/lazylmf-ai/powersched/internal/output"
	"github.com/spf13/cobra"
)

var (
	simUser     string
	simBattery  float64
	simHours    int
	simStepRate float64
	simCount    int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a scripted battery scenario through the full pipeline",
	Long: `Drain the simulated battery hour by hour and drive the whole pipeline
at each step: posture evaluation, an optimization pass, and the usage
learning feedback loop. The device enters idle mid-scenario and exits
at the end, exercising alarm downgrades and maintenance windows.

Examples:
  powersched simulate --user user-1 --battery 0.9 --hours 12
  powersched simulate --step-drain 0.08 --hours 8`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simUser, "user", "user-1", "User whose reminders are optimized")
	simulateCmd.Flags().Float64Var(&simBattery, "battery", 0.90, "Starting battery level (0..1)")
	simulateCmd.Flags().IntVar(&simHours, "hours", 12, "Simulated hours to run")
	simulateCmd.Flags().Float64Var(&simStepRate, "step-drain", 0.06, "Battery fraction drained per simulated hour")
	simulateCmd.Flags().IntVar(&simCount, "count", 4, "Sample reminders per optimization pass")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := buildServices(ctx, simBattery, battery.ChargeUnplugged, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Println(output.Section("Battery scenario"))
	fmt.Printf("\n user %s, %d simulated hours, %.0f%% drain per hour\n\n",
		simUser, simHours, simStepRate*100)

	// Deferred work the scenario will route through the doze machinery.
	alarmFired := false
	svc.gate.ScheduleAlarm(ctx, "sim-critical-dose", time.Now().Add(2*time.Hour), doze.AlarmOptions{
		Priority: battery.PriorityCritical,
		Tier:     doze.TierExact,
		Wakeup:   true,
		Callback: func() { alarmFired = true },
	})
	svc.gate.ScheduleMaintenanceWindow(ctx, []doze.MaintenanceTask{
		{ID: "sync-adherence", Type: "sync", EstimatedDuration: 5 * time.Minute, NetworkRequired: true},
		{ID: "cleanup-cache", Type: "cleanup", EstimatedDuration: 2 * time.Minute},
	}, battery.PriorityMedium, float64(simHours))

	idleEntered := false
	tbl := output.NewTable("Hour", "Battery", "Level", "Idle", "Optimized", "Reduction", "Next-hour drain")

	for hour := 1; hour <= simHours; hour++ {
		svc.probe.Drain(simStepRate)
		snap := svc.probe.Snapshot()
		posture := svc.supervisor.Evaluate(snap)

		// Screen goes dark halfway through the scenario.
		if !idleEntered && hour*2 >= simHours {
			svc.gate.SetIdleState(ctx, doze.StateIdle)
			idleEntered = true
		}

		passTime := time.Now().Add(time.Duration(hour) * time.Hour)
		svc.gate.Tick(ctx, passTime)
		result := svc.optimizer.Optimize(ctx, simUser, sampleReminders(simCount, passTime))
		recordRun(svc, simUser, result)

		// Feed the realized drain back into the learning loop so the
		// model's forecasts tighten as the scenario progresses.
		_, model := svc.energy.RecordObservedUsage(ctx, simUser, energy.Observation{
			Actual:         simStepRate,
			TimeFrameHours: 1,
			ReminderCount:  result.Summary.OptimizedReminders,
			At:             passTime,
		})
		svc.supervisor.RecordOperationCost(simStepRate * 100)

		h1, _, _ := energy.Forecast(model)
		tbl.AddRow(
			fmt.Sprintf("%d", hour),
			fmt.Sprintf("%.0f%%", snap.Level*100),
			string(posture.Level),
			yesNo(svc.gate.Idle()),
			fmt.Sprintf("%d/%d", result.Summary.OptimizedReminders, result.Summary.TotalReminders),
			fmt.Sprintf("%.2f%%", result.BatteryReduction),
			fmt.Sprintf("%.1f%%", h1*100),
		)
	}
	tbl.Print()
	fmt.Println()

	// Waking the device flushes any due maintenance windows and releases
	// alarms held during idle.
	endTime := time.Now().Add(time.Duration(simHours) * time.Hour)
	svc.gate.SetIdleState(ctx, doze.StateActive)
	svc.gate.Tick(ctx, endTime)

	prediction := svc.supervisor.PredictBatteryLife()
	fmt.Printf(" predicted life: %.1fh remaining (confidence %.2f)\n",
		prediction.HoursRemaining, prediction.Confidence)

	pattern := svc.energy.PatternFor(ctx, simUser)
	fmt.Printf(" learned daily usage: %.1f%%, per-reminder cost %.3f%%\n",
		pattern.AverageDailyUsage*100, pattern.ReminderBatteryImpact*100)

	for _, w := range svc.gate.Windows() {
		fmt.Printf(" maintenance window %s: %s (%d tasks)\n", w.ID, w.State, len(w.Tasks))
	}
	if flagVerbose {
		fmt.Printf(" critical alarm fired: %s\n", yesNo(alarmFired))
		for _, a := range svc.gate.Alarms() {
			fmt.Printf(" pending alarm %s at %s (tier %s)\n",
				a.ID, a.TriggerTime.Format("15:04"), a.Tier)
		}
	}

	if err := svc.energy.Flush(ctx); err != nil {
		fmt.Println(" warning: persisting learned models:", err)
	}
	return nil
}
