package config

import "time"

// SweepConfig defines how a monitoring sweep is executed and classified
type SweepConfig struct {
	MaxConcurrentChecks int     `json:"max_concurrent_checks,omitempty" yaml:"max_concurrent_checks,omitempty" validate:"omitempty,min=1"`
	RetentionDays       int     `json:"retention_days,omitempty" yaml:"retention_days,omitempty" validate:"omitempty,min=1"`
	AlertThreshold      float64 `json:"alert_threshold,omitempty" yaml:"alert_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	IgnoreWhitespace    bool    `json:"ignore_whitespace" yaml:"ignore_whitespace"`
	Actor               string  `json:"actor,omitempty" yaml:"actor,omitempty"`
}

// NewDefaultSweepConfig creates default sweep configuration
func NewDefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MaxConcurrentChecks: DefaultSweepMaxConcurrentChecks,
		RetentionDays:       DefaultSweepRetentionDays,
		AlertThreshold:      DefaultSweepAlertThreshold,
		IgnoreWhitespace:    DefaultSweepIgnoreWhitespace,
		Actor:               DefaultSweepActor,
	}
}

// RetentionWindow returns the rolling backlog window.
func (c SweepConfig) RetentionWindow() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = DefaultSweepRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}
