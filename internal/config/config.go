// Package config loads and validates the daemon configuration.
package config

import (
	"time"
)

// Config represents the main SessionGuard configuration.
type Config struct {
	// Browser connection
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Session capture behavior
	Sessions SessionsConfig `json:"sessions" mapstructure:"sessions"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// SourcePath is the file this config was resolved from. Set by the
	// loader, never read from the file itself.
	SourcePath string `json:"-" mapstructure:"-"`
}

// BrowserConfig holds browser attachment configuration.
type BrowserConfig struct {
	// ControlURL is the DevTools control URL of a running browser. When
	// empty a browser is launched.
	ControlURL string `json:"control_url" mapstructure:"control_url"`
	Headless   bool   `json:"headless" mapstructure:"headless"`
}

// SessionsConfig tunes capture, retention, and restore behavior.
type SessionsConfig struct {
	// StorePath is the SQLite database the session list lives in.
	// Defaults to <data_dir>/sessions.db.
	StorePath string `json:"store_path" mapstructure:"store_path"`

	AutoSaveInterval   time.Duration `json:"auto_save_interval" mapstructure:"auto_save_interval"`
	DebounceQuiet      time.Duration `json:"debounce_quiet" mapstructure:"debounce_quiet"`
	ScrollProbeTimeout time.Duration `json:"scroll_probe_timeout" mapstructure:"scroll_probe_timeout"`
	ScrollSettleDelay  time.Duration `json:"scroll_settle_delay" mapstructure:"scroll_settle_delay"`
}

// GatewayConfig holds gateway server configuration.
type GatewayConfig struct {
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless: false,
		},
		Sessions: SessionsConfig{
			AutoSaveInterval:   5 * time.Minute,
			DebounceQuiet:      2 * time.Second,
			ScrollProbeTimeout: 3 * time.Second,
			ScrollSettleDelay:  1 * time.Second,
		},
		Gateway: GatewayConfig{
			Port: 8391,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}
