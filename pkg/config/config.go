// Package config loads and validates the client configuration from file,
// environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cocosip/fastdfs-go/pkg/client"
	"github.com/cocosip/fastdfs-go/pkg/conn"
	"github.com/cocosip/fastdfs-go/pkg/selector"
)

// Config captures every configurable aspect of the client.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FDFS_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Trackers lists the directory-service endpoints, "host:port"
	Trackers []string `mapstructure:"trackers" validate:"required,min=1,dive,hostname_port"`

	// DefaultGroup resolves file identifiers given as a bare path
	DefaultGroup string `mapstructure:"default_group" validate:"omitempty,max=16"`

	// Selector names the storage selection policy
	// Valid values: tracker, first, random, roundrobin
	Selector string `mapstructure:"selector" validate:"omitempty,oneof=tracker first random roundrobin"`

	// Pool configures the per-endpoint connection pools
	Pool PoolConfig `mapstructure:"pool"`

	// Metrics enables the Prometheus registry
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// PoolConfig configures every per-endpoint connection pool. Idle and
// lifetime bounds are whole seconds; the socket timeouts are durations.
type PoolConfig struct {
	// MaxPerEndpoint bounds idle + active connections per endpoint
	MaxPerEndpoint int `mapstructure:"max_per_endpoint" validate:"required,gt=0"`

	// MinPerEndpoint is the pre-warm target kept by the eviction cycle
	MinPerEndpoint int `mapstructure:"min_per_endpoint" validate:"gte=0"`

	// IdleTimeoutSeconds invalidates connections idle longer than this
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds" validate:"gte=0"`

	// MaxLifetimeSeconds invalidates connections older than this
	MaxLifetimeSeconds int `mapstructure:"max_lifetime_seconds" validate:"gte=0"`

	// EvictionIntervalSeconds is how often the background cycle runs
	EvictionIntervalSeconds int `mapstructure:"eviction_interval_seconds" validate:"gte=0"`

	// ConnectTimeout bounds dial plus the pool-capacity wait
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"required,gt=0"`

	// SendTimeout bounds writing one request
	SendTimeout time.Duration `mapstructure:"send_timeout" validate:"required,gt=0"`

	// ReceiveTimeout bounds reading one response
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout" validate:"required,gt=0"`

	// DialsPerSecond optionally damps reconnect storms; zero = unlimited
	DialsPerSecond uint `mapstructure:"dials_per_second"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on the global metrics registry
	Enabled bool `mapstructure:"enabled"`
}

// PoolOptions converts the validated pool section into pool options.
func (c *Config) PoolOptions() conn.PoolOptions {
	return conn.PoolOptions{
		MaxPerEndpoint:   c.Pool.MaxPerEndpoint,
		MinPerEndpoint:   c.Pool.MinPerEndpoint,
		IdleTimeout:      time.Duration(c.Pool.IdleTimeoutSeconds) * time.Second,
		MaxLifetime:      time.Duration(c.Pool.MaxLifetimeSeconds) * time.Second,
		EvictionInterval: time.Duration(c.Pool.EvictionIntervalSeconds) * time.Second,
		DialsPerSecond:   c.Pool.DialsPerSecond,
		Conn: conn.Options{
			ConnectTimeout: c.Pool.ConnectTimeout,
			SendTimeout:    c.Pool.SendTimeout,
			ReceiveTimeout: c.Pool.ReceiveTimeout,
		},
	}
}

// ClientOptions converts the validated configuration into facade options.
func (c *Config) ClientOptions() (client.Options, error) {
	sel, err := selector.ForName(c.Selector)
	if err != nil {
		return client.Options{}, err
	}

	return client.Options{
		Trackers:     c.Trackers,
		DefaultGroup: c.DefaultGroup,
		Selector:     sel,
		Pool:         c.PoolOptions(),
	}, nil
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables and config file lookup.
// Environment variables use the FDFS_ prefix, e.g. FDFS_LOGGING_LEVEL.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FDFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No file is acceptable; env and defaults still apply.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/fdfs, falling back to ~/.config
// or the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fdfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fdfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
