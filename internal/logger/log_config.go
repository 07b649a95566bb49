package logger

// Default log settings
const (
	DefaultLogFile       = ""
	DefaultLogFormat     = "console"
	DefaultLogLevel      = "info"
	DefaultMaxLogBackups = 3
	DefaultMaxLogSizeMB  = 100
)

// FileLogConfig defines configuration for logging from a config file
type FileLogConfig struct {
	LogFile       string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	LogFormat     string `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"omitempty,logformat"`
	LogLevel      string `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"omitempty,loglevel"`
	MaxLogBackups int    `json:"max_log_backups,omitempty" yaml:"max_log_backups,omitempty" validate:"omitempty,min=0"`
	MaxLogSizeMB  int    `json:"max_log_size_mb,omitempty" yaml:"max_log_size_mb,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultFileLogConfig creates default log configuration
func NewDefaultFileLogConfig() FileLogConfig {
	return FileLogConfig{
		LogFile:       DefaultLogFile,
		LogFormat:     DefaultLogFormat,
		LogLevel:      DefaultLogLevel,
		MaxLogBackups: DefaultMaxLogBackups,
		MaxLogSizeMB:  DefaultMaxLogSizeMB,
	}
}

// toLoggerConfig converts file settings to a LoggerConfig, falling back to
// defaults for anything unset or unparsable.
func (c FileLogConfig) toLoggerConfig() LoggerConfig {
	cfg := DefaultLoggerConfig()

	if level, err := ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Format = ParseFormat(c.LogFormat)
	cfg.EnableFile = c.LogFile != ""
	cfg.FilePath = c.LogFile
	if c.MaxLogSizeMB > 0 {
		cfg.MaxSizeMB = c.MaxLogSizeMB
	}
	if c.MaxLogBackups > 0 {
		cfg.MaxBackups = c.MaxLogBackups
	}
	return cfg
}
