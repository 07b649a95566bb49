package config

// StorageConfig defines configuration for the workflow record store
type StorageConfig struct {
	Driver     string `json:"driver,omitempty" yaml:"driver,omitempty" validate:"omitempty,storagedriver"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	DSN        string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:     DefaultStorageDriver,
		SQLitePath: DefaultStorageSQLitePath,
	}
}

// IsPostgres reports whether the store should use the Postgres driver.
func (c StorageConfig) IsPostgres() bool {
	return c.Driver == "postgres"
}
