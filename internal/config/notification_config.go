package config

import "time"

// NotificationConfig defines configuration for alert notifications
type NotificationConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	URLs           []string `json:"urls,omitempty" yaml:"urls,omitempty" validate:"omitempty,dive,serviceurl"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	TitlePrefix    string   `json:"title_prefix,omitempty" yaml:"title_prefix,omitempty"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Enabled:        false,
		URLs:           []string{},
		TimeoutSeconds: DefaultNotificationTimeoutSeconds,
		TitlePrefix:    "[driftwatch]",
	}
}

// Timeout returns the per-send timeout.
func (c NotificationConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultNotificationTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
