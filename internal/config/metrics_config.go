package config

// MetricsConfig defines the Prometheus exposition endpoint
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty" validate:"required_if=Enabled true"`
	Path          string `json:"path,omitempty" yaml:"path,omitempty"`
}

// NewDefaultMetricsConfig creates default metrics configuration
func NewDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:       false,
		ListenAddress: DefaultMetricsListenAddress,
		Path:          DefaultMetricsPath,
	}
}
