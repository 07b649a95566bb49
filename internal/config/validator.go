package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator with the custom tags used by config structs.
func newValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("storagedriver", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "sqlite", "postgres":
			return true
		default:
			return false
		}
	})

	// Accepts http(s) URLs and shoutrrr service URLs such as discord:// or slack://.
	_ = validate.RegisterValidation("serviceurl", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		return err == nil && u.Scheme != ""
	})

	return validate
}

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return common.NewConfigurationError("", "", "configuration is nil")
	}

	if err := newValidator().Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return formatValidationErrors(errs)
		}
		return fmt.Errorf("configuration validation error: %w", err)
	}

	if cfg.NotificationConfig.Enabled && len(cfg.NotificationConfig.URLs) == 0 {
		return common.NewConfigurationError("notification_config", "urls", "at least one URL is required when notifications are enabled")
	}
	if cfg.StorageConfig.IsPostgres() && cfg.StorageConfig.DSN == "" {
		return common.NewConfigurationError("storage_config", "dsn", "required when driver is postgres")
	}
	if !cfg.StorageConfig.IsPostgres() && cfg.StorageConfig.SQLitePath == "" {
		return common.NewConfigurationError("storage_config", "sqlite_path", "required when driver is sqlite")
	}

	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("Validation failed for '%s': rule '%s'", e.Namespace(), e.Tag())
		if e.Param() != "" {
			msg += fmt.Sprintf(" (expected: %s)", e.Param())
		}
		if e.Value() != nil && e.Value() != "" {
			msg += fmt.Sprintf(", actual: '%v'", e.Value())
		}
		messages = append(messages, msg)
	}
	return fmt.Errorf("%w:\n  %s", common.ErrInvalidConfiguration, strings.Join(messages, "\n  "))
}
