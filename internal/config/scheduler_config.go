package config

import "time"

// SchedulerConfig defines configuration for scheduler
type SchedulerConfig struct {
	CycleMinutes  int    `json:"cycle_minutes,omitempty" yaml:"cycle_minutes,omitempty" validate:"min=1"` // in minutes
	RetryAttempts int    `json:"retry_attempts" yaml:"retry_attempts" validate:"min=0"`
	LockFile      string `json:"lock_file,omitempty" yaml:"lock_file,omitempty" validate:"required"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CycleMinutes:  DefaultSchedulerCycleMinutes,
		RetryAttempts: DefaultSchedulerRetryAttempts,
		LockFile:      DefaultSchedulerLockFile,
	}
}

// Interval returns the time between sweeps.
func (c SchedulerConfig) Interval() time.Duration {
	if c.CycleMinutes <= 0 {
		return DefaultSchedulerCycleMinutes * time.Minute
	}
	return time.Duration(c.CycleMinutes) * time.Minute
}
