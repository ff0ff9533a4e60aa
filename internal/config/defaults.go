// Package config provides configuration loading and defaults for powersched.
package config

// DefaultConfigDir is the default location for powersched configuration.
const DefaultConfigDir = "~/.config/powersched"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "powersched.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultBattery holds the default optimization-level thresholds.
var DefaultBattery = Battery{
	CriticalThreshold:     0.15,
	LowThreshold:          0.30,
	ConservativeThreshold: 0.50,
	FullThreshold:         0.80,
}

// DefaultScheduler holds the default retiming limits.
var DefaultScheduler = Scheduler{
	MaxDelayMinutes:    90,
	BatchWindowMinutes: 30,
	ToleranceSeconds:   60,
}

// DefaultDoze holds the default idle-mode compliance policy.
var DefaultDoze = Doze{
	AllowInexactDowngrade: true,
	Whitelisted:           false,
	RecurringMaintenance:  true,
	MaintenanceIntervalH:  6,
}

// DefaultTicks holds the default background loop intervals.
var DefaultTicks = Ticks{
	IdlePollSeconds:   60,
	ReoptimizeMinutes: 15,
}

// DefaultHistory holds the default history retention bound.
var DefaultHistory = History{
	Limit: 100,
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
