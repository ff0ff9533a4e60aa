// Package app contains the Cobra command tree for powersched.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "powersched",
	Short: "Energy-aware adaptive reminder scheduling",
	Long: `powersched decides when scheduled reminders should actually fire,
trading battery cost against adherence risk. It models per-user energy
usage, selects an optimization strategy for current battery conditions,
and keeps deferred work compliant with OS idle-mode restrictions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("powersched", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  optimize  Run an optimization pass over pending reminders")
		fmt.Println("  status    Show battery posture, restrictions, and doze state")
		fmt.Println("  watch     Monitor battery state and re-optimize continuously")
		fmt.Println("  history   Show level transitions and past optimization runs")
		fmt.Println("  simulate  Drive the full pipeline through a battery scenario")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/powersched/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")
}
