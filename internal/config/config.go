package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level powersched configuration.
type Config struct {
	Battery   Battery   `mapstructure:"battery"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Doze      Doze      `mapstructure:"doze"`
	Ticks     Ticks     `mapstructure:"ticks"`
	History   History   `mapstructure:"history"`
	Output    Output    `mapstructure:"output"`
}

// Battery defines the thresholds that drive optimization-level changes.
// Thresholds are battery fractions in [0, 1].
type Battery struct {
	CriticalThreshold     float64 `mapstructure:"critical_threshold"`
	LowThreshold          float64 `mapstructure:"low_threshold"`
	ConservativeThreshold float64 `mapstructure:"conservative_threshold"`
	FullThreshold         float64 `mapstructure:"full_threshold"`
}

// Scheduler defines limits for reminder retiming.
type Scheduler struct {
	MaxDelayMinutes    int `mapstructure:"max_delay_minutes"`
	BatchWindowMinutes int `mapstructure:"batch_window_minutes"`
	ToleranceSeconds   int `mapstructure:"tolerance_seconds"`
}

// Doze defines idle-mode compliance policy.
type Doze struct {
	AllowInexactDowngrade bool `mapstructure:"allow_inexact_downgrade"`
	Whitelisted           bool `mapstructure:"whitelisted"`
	RecurringMaintenance  bool `mapstructure:"recurring_maintenance"`
	MaintenanceIntervalH  int  `mapstructure:"maintenance_interval_hours"`
}

// Ticks defines the background loop intervals.
type Ticks struct {
	IdlePollSeconds   int `mapstructure:"idle_poll_seconds"`
	ReoptimizeMinutes int `mapstructure:"reoptimize_minutes"`
}

// History defines retention bounds for transition and scheduling history.
type History struct {
	Limit int `mapstructure:"limit"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// MaxDelay returns the maximum scheduling delay as a Duration.
func (s Scheduler) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelayMinutes) * time.Minute
}

// BatchWindow returns the batch merge window as a Duration.
func (s Scheduler) BatchWindow() time.Duration {
	return time.Duration(s.BatchWindowMinutes) * time.Minute
}

// Tolerance returns the allowed early-shift tolerance as a Duration.
func (s Scheduler) Tolerance() time.Duration {
	return time.Duration(s.ToleranceSeconds) * time.Second
}

// IdlePoll returns the doze polling interval as a Duration.
func (t Ticks) IdlePoll() time.Duration {
	return time.Duration(t.IdlePollSeconds) * time.Second
}

// Reoptimize returns the optimization re-evaluation interval as a Duration.
func (t Ticks) Reoptimize() time.Duration {
	return time.Duration(t.ReoptimizeMinutes) * time.Minute
}

// MaintenanceInterval returns the recurring maintenance interval as a Duration.
func (d Doze) MaintenanceInterval() time.Duration {
	return time.Duration(d.MaintenanceIntervalH) * time.Hour
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("battery.critical_threshold", DefaultBattery.CriticalThreshold)
	v.SetDefault("battery.low_threshold", DefaultBattery.LowThreshold)
	v.SetDefault("battery.conservative_threshold", DefaultBattery.ConservativeThreshold)
	v.SetDefault("battery.full_threshold", DefaultBattery.FullThreshold)
	v.SetDefault("scheduler.max_delay_minutes", DefaultScheduler.MaxDelayMinutes)
	v.SetDefault("scheduler.batch_window_minutes", DefaultScheduler.BatchWindowMinutes)
	v.SetDefault("scheduler.tolerance_seconds", DefaultScheduler.ToleranceSeconds)
	v.SetDefault("doze.allow_inexact_downgrade", DefaultDoze.AllowInexactDowngrade)
	v.SetDefault("doze.whitelisted", DefaultDoze.Whitelisted)
	v.SetDefault("doze.recurring_maintenance", DefaultDoze.RecurringMaintenance)
	v.SetDefault("doze.maintenance_interval_hours", DefaultDoze.MaintenanceIntervalH)
	v.SetDefault("ticks.idle_poll_seconds", DefaultTicks.IdlePollSeconds)
	v.SetDefault("ticks.reoptimize_minutes", DefaultTicks.ReoptimizeMinutes)
	v.SetDefault("history.limit", DefaultHistory.Limit)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		configDir := expandPath(DefaultConfigDir)
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Only return error for problems other than file not found.
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DBPath returns the full path to the SQLite database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
