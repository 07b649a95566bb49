package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerBuilder_Default(t *testing.T) {
	logger, err := NewLoggerBuilder().Build()
	require.NoError(t, err)
	require.NotNil(t, logger)

	config := logger.Config()
	assert.Equal(t, zerolog.InfoLevel, config.Level)
	assert.Equal(t, FormatConsole, config.Format)
	assert.True(t, config.EnableConsole)
	assert.False(t, config.EnableFile)
	assert.NoError(t, logger.Close())
}

func TestLoggerBuilder_FileLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "driftwatch.log")

	logger, err := NewLoggerBuilder().
		WithConfig(FileLogConfig{LogFile: logFile, LogFormat: "json", LogLevel: "debug"}).
		WithoutConsole().
		Build()
	require.NoError(t, err)

	logger.GetZerolog().Debug().Int64("monitor_id", 7).Msg("this is a test")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"level":"debug"`)
	assert.Contains(t, string(content), `"monitor_id":7`)
	assert.Contains(t, string(content), `"message":"this is a test"`)
}

func TestLoggerBuilder_ConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerBuilder().
		WithConfig(FileLogConfig{LogFormat: "json", LogLevel: "warn"}).
		WithConsole(&buf).
		Build()
	require.NoError(t, err)

	logger.GetZerolog().Info().Msg("dropped")
	logger.GetZerolog().Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestLoggerBuilder_NoWriters(t *testing.T) {
	_, err := NewLoggerBuilder().WithoutConsole().Build()
	assert.Error(t, err)
}

func TestFileLogConfig_Conversion(t *testing.T) {
	cfg := FileLogConfig{
		LogLevel:      "warn",
		LogFormat:     "json",
		LogFile:       "/tmp/test.log",
		MaxLogSizeMB:  50,
		MaxLogBackups: 5,
	}.toLoggerConfig()

	assert.Equal(t, zerolog.WarnLevel, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.EnableFile)
	assert.Equal(t, "/tmp/test.log", cfg.FilePath)
	assert.Equal(t, 50, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxBackups)

	fallback := FileLogConfig{LogLevel: "loud"}.toLoggerConfig()
	assert.Equal(t, zerolog.InfoLevel, fallback.Level)
	assert.Equal(t, DefaultMaxLogSizeMB, fallback.MaxSizeMB)
}

func TestParsers(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	assert.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, level)

	_, err = ParseLevel("invalid-level")
	assert.Error(t, err)

	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatConsole, ParseFormat("console"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatConsole, ParseFormat("unknown-format"))
}
