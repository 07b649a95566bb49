package config

const (
	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// Storage Defaults
	DefaultStorageDriver     = "sqlite"
	DefaultStorageSQLitePath = "database/driftwatch.db"

	// Sweep Defaults
	DefaultSweepMaxConcurrentChecks = 5
	DefaultSweepRetentionDays       = 30
	DefaultSweepAlertThreshold      = 0.5
	DefaultSweepIgnoreWhitespace    = true
	DefaultSweepActor               = "driftwatch"

	// Fetch Defaults
	DefaultFetchTimeoutSeconds   = 30
	DefaultFetchMaxContentSize   = 1048576 // 1MB
	DefaultFetchUserAgent        = "driftwatch/1.0 (+content monitor)"
	DefaultFetchMaxRetries       = 2
	DefaultFetchRetryBaseDelayMs = 500
	DefaultFetchRetryMaxDelayMs  = 5000

	// Notification Defaults
	DefaultNotificationTimeoutSeconds = 20

	// Scheduler Defaults
	DefaultSchedulerCycleMinutes  = 60
	DefaultSchedulerLockFile      = "database/driftwatch.lock"
	DefaultSchedulerRetryAttempts = 2

	// Metrics Defaults
	DefaultMetricsListenAddress = ":9464"
	DefaultMetricsPath          = "/metrics"
)
