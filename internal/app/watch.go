package app

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazylmf-ai/powersched/internal/battery"
	"github.com/lazylmf-ai/powersched/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	watchUser      string
	watchBattery   float64
	watchCharging  bool
	watchDrainRate float64
	watchInterval  time.Duration
	watchCount     int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor battery state and re-optimize continuously",
	Long: `Run the supervisor, the idle-mode gate, and a periodic optimization
loop until interrupted. Battery state follows the simulated probe,
draining at --drain-rate per interval.

Examples:
  powersched watch --user user-1 --battery 0.8 --drain-rate 0.02
  powersched watch --user user-1 --interval 30s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchUser, "user", "user-1", "User whose reminders are re-optimized")
	watchCmd.Flags().Float64Var(&watchBattery, "battery", 0.80, "Starting battery level (0..1)")
	watchCmd.Flags().BoolVar(&watchCharging, "charging", false, "Device starts on the charger")
	watchCmd.Flags().Float64Var(&watchDrainRate, "drain-rate", 0.01, "Battery fraction drained per interval")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "Probe update interval")
	watchCmd.Flags().IntVar(&watchCount, "count", 4, "Sample reminders per optimization pass")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := battery.ChargeUnplugged
	if watchCharging {
		state = battery.ChargeCharging
	}
	svc, err := buildServices(ctx, watchBattery, state, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc.supervisor.OnTransition(func(t battery.Transition) {
		fmt.Printf("[%s] level %s -> %s (%s)\n",
			t.At.Format("15:04:05"),
			t.From, output.StyleBold.Render(string(t.To)), t.Reason)
	})

	fmt.Println(output.Section("Watching battery state"))
	fmt.Printf("\n user %s, starting at %.0f%%, draining %.1f%% per %s\n\n",
		watchUser, watchBattery*100, watchDrainRate*100, watchInterval)

	g, gctx := errgroup.WithContext(ctx)

	// Supervisor re-evaluates on every probe change.
	g.Go(func() error {
		err := svc.supervisor.Run(gctx)
		if err == gctx.Err() {
			return nil
		}
		return err
	})

	// The gate's tick drives maintenance windows and alarms.
	g.Go(func() error {
		err := svc.gate.Run(gctx, svc.cfg.Ticks.IdlePoll())
		if err == gctx.Err() {
			return nil
		}
		return err
	})

	// Probe simulation plus periodic re-optimization.
	g.Go(func() error {
		drain := time.NewTicker(watchInterval)
		defer drain.Stop()
		reoptimize := time.NewTicker(svc.cfg.Ticks.Reoptimize())
		defer reoptimize.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-drain.C:
				svc.probe.Drain(watchDrainRate)
				if flagVerbose {
					snap := svc.probe.Snapshot()
					fmt.Printf("[%s] battery %.0f%%\n", snap.At.Format("15:04:05"), snap.Level*100)
				}
			case <-reoptimize.C:
				result := svc.optimizer.Optimize(gctx, watchUser, sampleReminders(watchCount, time.Now()))
				recordRun(svc, watchUser, result)
				fmt.Printf("[%s] re-optimized %d reminders, %.2f%% battery reduction\n",
					time.Now().Format("15:04:05"),
					result.Summary.TotalReminders, result.BatteryReduction)
			}
		}
	})

	return g.Wait()
}
