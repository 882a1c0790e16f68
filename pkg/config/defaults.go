package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyPoolDefaults(&cfg.Pool)

	if cfg.Selector == "" {
		cfg.Selector = "tracker"
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyPoolDefaults sets pool sizing and timeout defaults.
func applyPoolDefaults(cfg *PoolConfig) {
	if cfg.MaxPerEndpoint == 0 {
		cfg.MaxPerEndpoint = 10
	}
	if cfg.IdleTimeoutSeconds == 0 {
		cfg.IdleTimeoutSeconds = 300
	}
	if cfg.MaxLifetimeSeconds == 0 {
		cfg.MaxLifetimeSeconds = 3600
	}
	if cfg.EvictionIntervalSeconds == 0 {
		cfg.EvictionIntervalSeconds = 30
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.ReceiveTimeout == 0 {
		cfg.ReceiveTimeout = 30 * time.Second
	}
}
