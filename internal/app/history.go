package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/output"
	"github.com/lazylmf-ai/powersched/internal/store"
	"github.com/spf13/cobra"
)

var (
	histLimit int
	histUser  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent level transitions and optimization runs",
	Long: `Show the recorded optimization-level transitions and, when --user is
given, that user's recent scheduling runs.

Examples:
  powersched history
  powersched history --user user-1 --limit 20`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&histLimit, "limit", 20, "Maximum rows per table")
	historyCmd.Flags().StringVar(&histUser, "user", "", "Also show this user's scheduling runs")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, err := buildServices(cmd.Context(), 0.65, battery.ChargeUnplugged, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	transitions, err := svc.db.RecentLevelTransitions(histLimit)
	if err != nil {
		return fmt.Errorf("loading level history: %w", err)
	}

	var runs []store.SchedulingRun
	if histUser != "" {
		runs, err = svc.db.RecentSchedulingRuns(histUser, histLimit)
		if err != nil {
			return fmt.Errorf("loading scheduling history: %w", err)
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Transitions []store.LevelTransition `json:"transitions"`
			Runs        []store.SchedulingRun   `json:"runs,omitempty"`
		}{transitions, runs})
	}

	fmt.Println(output.Section("Optimization level history"))
	fmt.Println()
	if len(transitions) == 0 {
		fmt.Println(" no transitions recorded")
	} else {
		tbl := output.NewTable("When", "From", "To", "Reason")
		for _, t := range transitions {
			tbl.AddRow(
				t.ChangedAt.Local().Format("Jan 02 15:04"),
				t.FromLevel,
				t.ToLevel,
				t.Reason,
			)
		}
		tbl.Print()
	}

	if histUser == "" {
		return nil
	}

	fmt.Println()
	fmt.Println(output.Section(fmt.Sprintf("Scheduling runs for %s", histUser)))
	fmt.Println()
	if len(runs) == 0 {
		fmt.Println(" no runs recorded")
		return nil
	}
	tbl := output.NewTable("When", "Strategy", "Reminders", "Optimized", "Reduction", "Adherence", "Avg delay")
	for _, r := range runs {
		tbl.AddRow(
			r.RunAt.Local().Format("Jan 02 15:04"),
			r.Strategy,
			fmt.Sprintf("%d", r.TotalReminders),
			fmt.Sprintf("%d", r.Optimized),
			fmt.Sprintf("%.2f%%", r.BatteryReduction),
			fmt.Sprintf("%+.1f", r.AdherenceImpact),
			(time.Duration(r.AvgDelayMinutes) * time.Minute).String(),
		)
	}
	tbl.Print()
	return nil
}
