package config

import "time"

// FetchConfig defines configuration for the HTTP content fetcher
type FetchConfig struct {
	TimeoutSeconds     int               `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1"`
	MaxContentSize     int               `json:"max_content_size,omitempty" yaml:"max_content_size,omitempty" validate:"omitempty,min=1"` // Max content size in bytes
	UserAgent          string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	CustomHeaders      map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	MaxRetries         int               `json:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelayMs   int               `json:"retry_base_delay_ms,omitempty" yaml:"retry_base_delay_ms,omitempty" validate:"omitempty,min=1"`
	RetryMaxDelayMs    int               `json:"retry_max_delay_ms,omitempty" yaml:"retry_max_delay_ms,omitempty" validate:"omitempty,min=1"`
	RetryStatusCodes   []int             `json:"retry_status_codes,omitempty" yaml:"retry_status_codes,omitempty" validate:"omitempty,dive,min=400,max=599"`
}

// NewDefaultFetchConfig creates default fetch configuration
func NewDefaultFetchConfig() FetchConfig {
	return FetchConfig{
		TimeoutSeconds:   DefaultFetchTimeoutSeconds,
		MaxContentSize:   DefaultFetchMaxContentSize,
		UserAgent:        DefaultFetchUserAgent,
		CustomHeaders:    map[string]string{},
		MaxRetries:       DefaultFetchMaxRetries,
		RetryBaseDelayMs: DefaultFetchRetryBaseDelayMs,
		RetryMaxDelayMs:  DefaultFetchRetryMaxDelayMs,
		RetryStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// Timeout returns the request timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultFetchTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff delay.
func (c FetchConfig) RetryBaseDelay() time.Duration {
	if c.RetryBaseDelayMs <= 0 {
		return DefaultFetchRetryBaseDelayMs * time.Millisecond
	}
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay caps the backoff delay.
func (c FetchConfig) RetryMaxDelay() time.Duration {
	if c.RetryMaxDelayMs <= 0 {
		return DefaultFetchRetryMaxDelayMs * time.Millisecond
	}
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}
