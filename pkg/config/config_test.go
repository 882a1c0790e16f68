package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/fastdfs-go/pkg/selector"
)

func validConfig() *Config {
	cfg := &Config{
		Trackers: []string{"10.0.0.1:22122"},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Trackers: []string{"10.0.0.1:22122"}}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "tracker", cfg.Selector)
	assert.Equal(t, 10, cfg.Pool.MaxPerEndpoint)
	assert.Equal(t, 300, cfg.Pool.IdleTimeoutSeconds)
	assert.Equal(t, 3600, cfg.Pool.MaxLifetimeSeconds)
	assert.Equal(t, 10*time.Second, cfg.Pool.ConnectTimeout)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Trackers: []string{"10.0.0.1:22122"},
		Logging:  LoggingConfig{Level: "debug"},
		Pool:     PoolConfig{MaxPerEndpoint: 50},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, 50, cfg.Pool.MaxPerEndpoint)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no trackers", func(c *Config) { c.Trackers = nil }},
		{"malformed endpoint", func(c *Config) { c.Trackers = []string{"no-port-here"} }},
		{"duplicate endpoints", func(c *Config) { c.Trackers = []string{"10.0.0.1:22122", "10.0.0.1:22122"} }},
		{"zero max pool size", func(c *Config) { c.Pool.MaxPerEndpoint = 0 }},
		{"min above max", func(c *Config) { c.Pool.MinPerEndpoint = 20 }},
		{"unknown selector", func(c *Config) { c.Selector = "fastest" }},
		{"group over wire width", func(c *Config) { c.DefaultGroup = "a-very-long-group-name-over-16" }},
		{"zero connect timeout", func(c *Config) { c.Pool.ConnectTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trackers:
  - "10.0.0.1:22122"
  - "10.0.0.2:22122"
default_group: group1
selector: roundrobin
logging:
  level: debug
pool:
  max_per_endpoint: 8
  min_per_endpoint: 2
  connect_timeout: 5s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1:22122", "10.0.0.2:22122"}, cfg.Trackers)
	assert.Equal(t, "group1", cfg.DefaultGroup)
	assert.Equal(t, "roundrobin", cfg.Selector)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Pool.MaxPerEndpoint)
	assert.Equal(t, 2, cfg.Pool.MinPerEndpoint)
	assert.Equal(t, 5*time.Second, cfg.Pool.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Pool.SendTimeout, "unset values still get defaults")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trackers: []
`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Selector = "roundrobin"
	cfg.DefaultGroup = "group1"
	cfg.Pool.IdleTimeoutSeconds = 120

	opts, err := cfg.ClientOptions()
	require.NoError(t, err)

	assert.Equal(t, cfg.Trackers, opts.Trackers)
	assert.Equal(t, "group1", opts.DefaultGroup)
	assert.IsType(t, &selector.RoundRobin{}, opts.Selector)
	assert.Equal(t, 120*time.Second, opts.Pool.IdleTimeout)
}
