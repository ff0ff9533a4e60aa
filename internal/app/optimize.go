package app

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/doze"
	"github.com/lazylmf-ai/powersched/internal/optimizer"
	"github.com/lazylmf-ai/powersched/internal/output"
	"github.com/lazylmf-ai/powersched/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	optBattery   float64
	optCharging  bool
	optLowPower  bool
	optIdle      bool
	optReminders string
	optCount     int
	optUsers     []string
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [user_id]",
	Short: "Run an optimization pass over pending reminders",
	Long: `Run one scheduling optimization pass for a user's pending reminders.
Reminders are read from a JSON file (--reminders) or generated as a
sample batch (--count). Battery conditions come from the flags.

Examples:
  powersched optimize user-1 --battery 0.12 --count 4
  powersched optimize user-1 --reminders pending.json --charging
  powersched optimize --users user-1,user-2,user-3 --battery 0.35`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().Float64Var(&optBattery, "battery", 0.65, "Battery level (0..1)")
	optimizeCmd.Flags().BoolVar(&optCharging, "charging", false, "Device is charging")
	optimizeCmd.Flags().BoolVar(&optLowPower, "low-power", false, "Platform low-power mode is active")
	optimizeCmd.Flags().BoolVar(&optIdle, "idle", false, "Device is in the idle (doze) state")
	optimizeCmd.Flags().StringVar(&optReminders, "reminders", "", "JSON file with pending reminders")
	optimizeCmd.Flags().IntVar(&optCount, "count", 4, "Number of sample reminders when no file is given")
	optimizeCmd.Flags().StringSliceVar(&optUsers, "users", nil, "Optimize several users in parallel")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state := battery.ChargeUnplugged
	if optCharging {
		state = battery.ChargeCharging
	}
	svc, err := buildServices(ctx, optBattery, state, optLowPower)
	if err != nil {
		return err
	}
	defer svc.Close()

	if optIdle {
		svc.gate.SetIdleState(ctx, doze.StateIdle)
	}

	users := optUsers
	if len(users) == 0 {
		if len(args) == 0 {
			return fmt.Errorf("usage: powersched optimize <user_id> [flags], or --users u1,u2")
		}
		users = []string{args[0]}
	}

	reminders, err := loadReminders()
	if err != nil {
		return err
	}

	// Users are independent; process them in parallel. Each user still
	// gets a single sequential pass.
	var mu sync.Mutex
	results := make(map[string]optimizer.Result, len(users))
	g, gctx := errgroup.WithContext(ctx)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			result := svc.optimizer.Optimize(gctx, userID, reminders)
			mu.Lock()
			results[userID] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, userID := range users {
		result := results[userID]
		recordRun(svc, userID, result)
		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			continue
		}
		printResult(userID, result)
	}

	return nil
}

// loadReminders reads the reminder batch from --reminders, or generates
// a sample batch spread over the next few hours.
func loadReminders() ([]optimizer.Reminder, error) {
	if optReminders != "" {
		data, err := os.ReadFile(optReminders)
		if err != nil {
			return nil, fmt.Errorf("reading reminders file: %w", err)
		}
		var reminders []optimizer.Reminder
		if err := json.Unmarshal(data, &reminders); err != nil {
			return nil, fmt.Errorf("parsing reminders file: %w", err)
		}
		return reminders, nil
	}
	return sampleReminders(optCount, time.Now()), nil
}

// sampleReminders builds a deterministic sample batch starting an hour out.
func sampleReminders(count int, now time.Time) []optimizer.Reminder {
	if count <= 0 {
		count = 1
	}
	reminders := make([]optimizer.Reminder, 0, count)
	base := now.Add(time.Hour).Truncate(time.Minute)
	for i := 0; i < count; i++ {
		priority := battery.PriorityMedium
		if i == 0 {
			priority = battery.PriorityHigh
		}
		reminders = append(reminders, optimizer.Reminder{
			ID:            fmt.Sprintf("rem-%d", i+1),
			MedicationID:  fmt.Sprintf("med-%d", i%2+1),
			ScheduledTime: base.Add(time.Duration(i) * 40 * time.Minute),
			Priority:      priority,
		})
	}
	return reminders
}

// recordRun persists the pass summary; failures are reported, not fatal.
func recordRun(svc *services, userID string, result optimizer.Result) {
	strategyName := ""
	for name := range result.Summary.StrategyBreakdown {
		strategyName = name
	}
	err := svc.db.InsertSchedulingRun(&store.SchedulingRun{
		RunAt:            time.Now(),
		UserID:           userID,
		Strategy:         strategyName,
		TotalReminders:   result.Summary.TotalReminders,
		Optimized:        result.Summary.OptimizedReminders,
		BatteryReduction: result.BatteryReduction,
		AdherenceImpact:  result.AdherenceImpact,
		AvgDelayMinutes:  result.Summary.AverageDelayMinutes,
	})
	if err != nil && flagVerbose {
		fmt.Fprintln(os.Stderr, "warning: recording run:", err)
	}
}

func printResult(userID string, result optimizer.Result) {
	fmt.Println(output.Section(fmt.Sprintf("Optimized schedule for %s", userID)))
	fmt.Println()

	tbl := output.NewTable("Reminder", "Original", "Optimized", "Delay", "Reduction", "Risk", "Strategy")
	for _, d := range result.OptimizedSchedule {
		tbl.AddRow(
			d.ReminderID,
			d.OriginalTime.Format("15:04"),
			d.OptimizedTime.Format("15:04"),
			d.Delay().Round(time.Minute).String(),
			fmt.Sprintf("%.2f%%", d.BatteryImpactReduction),
			fmt.Sprintf("%.2f", d.AdherenceRisk),
			d.Strategy,
		)
	}
	tbl.Print()
	fmt.Println()

	s := result.Summary
	fmt.Printf(" %d of %d reminders retimed, avg delay %.0fm\n", s.OptimizedReminders, s.TotalReminders, s.AverageDelayMinutes)
	fmt.Printf(" battery reduction %.2f%%, adherence impact %+.1f%%, satisfaction %.2f\n",
		s.BatteryReduction, s.AdherenceImpact, s.UserSatisfactionEstimate)
	if !s.CulturalConstraintsRespected {
		fmt.Println(" " + output.StyleWarning.Render("some timing constraints could not be satisfied"))
	}

	if flagVerbose {
		fmt.Println(output.Section("Reasoning"))
		for _, d := range result.OptimizedSchedule {
			fmt.Printf("\n %s:\n", d.ReminderID)
			for _, r := range d.Reasoning {
				fmt.Println("   - " + r)
			}
		}
	}
}
