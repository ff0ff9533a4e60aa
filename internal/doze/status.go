// Package doze tracks OS idle-mode state and enforces execution
// constraints on deferred work: maintenance windows and alarm schedules
// that guarantee deferred operations still run eventually.
package doze

import "time"

// IdleState is the device's current idle sub-state.
type IdleState string

// Idle sub-states, mirroring platform Doze progression.
const (
	StateActive      IdleState = "active"
	StateIdlePending IdleState = "idle_pending"
	StateSensing     IdleState = "sensing"
	StateLocating    IdleState = "locating"
	StateIdle        IdleState = "idle"
)

// StandbyBucket is the app-standby bucket assigned by the platform.
type StandbyBucket string

// Standby buckets from most to least favored.
const (
	BucketActive     StandbyBucket = "active"
	BucketWorkingSet StandbyBucket = "working_set"
	BucketFrequent   StandbyBucket = "frequent"
	BucketRare       StandbyBucket = "rare"
	BucketRestricted StandbyBucket = "restricted"
	BucketUnknown    StandbyBucket = "unknown"
)

// Status is the tracked idle-mode state.
type Status struct {
	IdleEnabled   bool          `json:"idle_enabled"`
	Whitelisted   bool          `json:"whitelisted"` // ignoring battery optimizations
	State         IdleState     `json:"state"`
	Bucket        StandbyBucket `json:"bucket"`
	LastIdleEntry time.Time     `json:"last_idle_entry"`
	LastIdleExit  time.Time     `json:"last_idle_exit"`
	IdleSessions  int           `json:"idle_sessions"`
}

// Idle reports whether the state restricts execution.
func (s Status) Idle() bool {
	return s.State == StateIdle
}
