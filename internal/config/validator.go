package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates the gateway port
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("gateway port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateSharedSecret validates the gateway shared secret
func (v *Validator) ValidateSharedSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("gateway shared_secret is required")
	}
	if len(secret) < 16 {
		return fmt.Errorf("gateway shared_secret must be at least 16 characters, got %d", len(secret))
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateSharedSecret(cfg.Gateway.SharedSecret); err != nil {
		errors = append(errors, err)
	}

	if cfg.Sessions.AutoSaveInterval <= 0 {
		errors = append(errors, fmt.Errorf("sessions.auto_save_interval must be positive"))
	}
	if cfg.Sessions.DebounceQuiet <= 0 {
		errors = append(errors, fmt.Errorf("sessions.debounce_quiet must be positive"))
	}
	if cfg.Sessions.ScrollProbeTimeout <= 0 {
		errors = append(errors, fmt.Errorf("sessions.scroll_probe_timeout must be positive"))
	}
	if cfg.Sessions.ScrollSettleDelay < 0 {
		errors = append(errors, fmt.Errorf("sessions.scroll_settle_delay must be >= 0"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
