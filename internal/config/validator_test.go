package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level), level)
	}

	assert.Error(t, v.ValidateLogLevel("verbose"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidatePort(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(8391))
	assert.NoError(t, v.ValidatePort(1))
	assert.NoError(t, v.ValidatePort(65535))
	assert.Error(t, v.ValidatePort(0))
	assert.Error(t, v.ValidatePort(-1))
	assert.Error(t, v.ValidatePort(70000))
}

func TestValidateSharedSecret(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSharedSecret("a-long-enough-secret"))
	assert.Error(t, v.ValidateSharedSecret(""))
	assert.Error(t, v.ValidateSharedSecret("short"))
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Gateway.SharedSecret = "a-long-enough-secret"

		errs := NewValidator().ValidateConfig(cfg)
		assert.Empty(t, errs)
	})

	t.Run("collects all problems", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Gateway.Port = 0
		cfg.Gateway.SharedSecret = ""
		cfg.Sessions.AutoSaveInterval = 0
		cfg.Sessions.DebounceQuiet = -time.Second
		cfg.Logging.Level = "loud"

		errs := NewValidator().ValidateConfig(cfg)
		assert.Len(t, errs, 5)
	})
}
