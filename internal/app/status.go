package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/output"
	"github.com/spf13/cobra"
)

var (
	statusBattery  float64
	statusCharging bool
	statusLowPower bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show battery posture, restrictions, and doze state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Float64Var(&statusBattery, "battery", 0.65, "Battery level (0..1)")
	statusCmd.Flags().BoolVar(&statusCharging, "charging", false, "Device is charging")
	statusCmd.Flags().BoolVar(&statusLowPower, "low-power", false, "Platform low-power mode is active")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state := battery.ChargeUnplugged
	if statusCharging {
		state = battery.ChargeCharging
	}
	svc, err := buildServices(ctx, statusBattery, state, statusLowPower)
	if err != nil {
		return err
	}
	defer svc.Close()

	posture := svc.supervisor.Posture()
	prediction := svc.supervisor.PredictBatteryLife()
	dozeStatus := svc.gate.Status()

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"posture":    posture,
			"prediction": prediction,
			"doze":       dozeStatus,
		})
	}

	fmt.Println(output.Section("Battery posture"))
	fmt.Println()
	fmt.Printf(" level: %s   savings: %.1f%%/h   active: %v\n",
		output.StyleBold.Render(string(posture.Level)), posture.EstimatedSavings, posture.Active)

	r := posture.Restrictions
	tbl := output.NewTable("Restriction", "Active")
	tbl.AddRow("reduce background processing", yesNo(r.ReduceBackground))
	tbl.AddRow("reduce sync frequency", yesNo(r.ReduceSyncFrequency))
	tbl.AddRow("batch notifications", yesNo(r.BatchNotifications))
	tbl.AddRow("defer non-critical tasks", yesNo(r.DeferNonCritical))
	tbl.AddRow("reduce visual effects", yesNo(r.ReduceVisualEffects))
	fmt.Println()
	tbl.Print()

	fmt.Println(output.Section("Battery life prediction"))
	fmt.Println()
	if prediction.Charging {
		fmt.Println(" charging, no drain expected")
	} else {
		fmt.Printf(" %.1f hours remaining (until %s), confidence %.2f\n",
			prediction.HoursRemaining,
			prediction.WillLastUntil.Format("Mon 15:04"),
			prediction.Confidence)
	}

	fmt.Println(output.Section("Idle mode"))
	fmt.Println()
	fmt.Printf(" state: %s   bucket: %s   whitelisted: %v   sessions: %d\n",
		dozeStatus.State, dozeStatus.Bucket, dozeStatus.Whitelisted, dozeStatus.IdleSessions)

	// A few representative admission probes.
	fmt.Println(output.Section("Admission control"))
	fmt.Println()
	probes := []struct {
		op       battery.OpType
		priority battery.Priority
	}{
		{battery.OpBackgroundTask, battery.PriorityMedium},
		{battery.OpBackgroundTask, battery.PriorityHigh},
		{battery.OpSync, battery.PriorityLow},
		{battery.OpNotification, battery.PriorityCritical},
	}
	probeTbl := output.NewTable("Operation", "Priority", "Decision", "Retry after", "Cost")
	for _, p := range probes {
		adm := svc.supervisor.CanProceed(p.op, p.priority)
		decision := output.StyleSuccess.Render("proceed")
		if !adm.Proceed {
			decision = output.StyleError.Render("reject")
		}
		retry := "-"
		if adm.RetryAfter > 0 {
			retry = adm.RetryAfter.Round(time.Minute).String()
		}
		probeTbl.AddRow(string(p.op), string(p.priority), decision, retry, fmt.Sprintf("%.1fx", adm.CostMultiplier))
	}
	probeTbl.Print()

	return nil
}

func yesNo(v bool) string {
	if v {
		return output.StyleWarning.Render("yes")
	}
	return "no"
}
