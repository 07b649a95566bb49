package logger

import (
	"io"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/rs/zerolog"
)

// Logger represents the main logger with configuration
type Logger struct {
	zerolog zerolog.Logger
	config  LoggerConfig
	closers []io.Closer
}

// GetZerolog returns the underlying zerolog instance
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zerolog
}

// Config returns the resolved configuration
func (l *Logger) Config() LoggerConfig {
	return l.config
}

// Close releases file writers.
func (l *Logger) Close() error {
	var ec common.ErrorCollector
	for _, c := range l.closers {
		ec.Add(c.Close())
	}
	l.closers = nil
	return ec.Error()
}

// New creates a logger from file settings. Callers own the returned Logger and
// should Close it on shutdown.
func New(cfg FileLogConfig) (*Logger, error) {
	return NewLoggerBuilder().WithConfig(cfg).Build()
}
