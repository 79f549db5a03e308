package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfig renders values as a YAML config file and returns its path.
func writeConfig(t *testing.T, values map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(values)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            7000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Cluster: ClusterConfig{
			Address:        "bob-0:8000",
			RequestTimeout: 5 * time.Second,
		},
		Thresholds: ThresholdsConfig{MaxCPU: 90, MinFreeSpace: 0.1},
		Metrics:    MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOB_MANAGEMENT_CLUSTER_ADDRESS", "bob-0:8000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "bob-0:8000", cfg.Cluster.Address)
	assert.Equal(t, 5*time.Second, cfg.Cluster.RequestTimeout)
	assert.Zero(t, cfg.Cluster.RefreshInterval)
	assert.Nil(t, cfg.Cluster.Credentials())

	assert.Equal(t, uint64(90), cfg.Thresholds.MaxCPU)
	assert.InDelta(t, 0.10, cfg.Thresholds.MinFreeSpace, 1e-9)
	assert.Zero(t, cfg.Aggregation.MaxConcurrency)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)

	assert.False(t, cfg.RateLimiter.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_RequiresClusterAddress(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster address is required")
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"server": map[string]any{"port": 8000, "request_timeout": "10s"},
		"cluster": map[string]any{
			"address":          "http://bob-0:8000",
			"login":            "admin",
			"password":         "secret",
			"request_timeout":  "2s",
			"refresh_interval": "1m",
		},
		"thresholds":  map[string]any{"max_cpu": 75, "min_free_space": 0.25},
		"aggregation": map[string]any{"max_concurrency": 16},
		"cors":        map[string]any{"allowed_origins": []string{"https://ui.example.com"}},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Cluster.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Cluster.RefreshInterval)
	assert.Equal(t, 16, cfg.Aggregation.MaxConcurrency)
	assert.Equal(t, []string{"https://ui.example.com"}, cfg.CORS.AllowedOrigins)

	th := cfg.Thresholds.Status()
	assert.Equal(t, uint64(75), th.MaxCPU)
	assert.InDelta(t, 0.25, th.MinFreeSpace, 1e-9)

	creds := cfg.Cluster.Credentials()
	require.NotNil(t, creds)
	assert.Equal(t, "admin", creds.Login)
	assert.Equal(t, "secret", creds.Password)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"cluster": map[string]any{"address": "bob-0:8000"},
	})
	t.Setenv("BOB_MANAGEMENT_SERVER_PORT", "7100")
	t.Setenv("BOB_MANAGEMENT_CLUSTER_ADDRESS", "bob-1:8000")
	t.Setenv("BOB_MANAGEMENT_THRESHOLDS_MAX_CPU", "80")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "bob-1:8000", cfg.Cluster.Address)
	assert.Equal(t, uint64(80), cfg.Thresholds.MaxCPU)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid server port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"missing address", func(c *Config) { c.Cluster.Address = "" }, "cluster address is required"},
		{"address without port", func(c *Config) { c.Cluster.Address = "bob-0" }, "invalid cluster address"},
		{"zero request timeout", func(c *Config) { c.Cluster.RequestTimeout = 0 }, "request timeout must be positive"},
		{"negative refresh interval", func(c *Config) { c.Cluster.RefreshInterval = -time.Second }, "refresh interval"},
		{"zero max cpu", func(c *Config) { c.Thresholds.MaxCPU = 0 }, "max cpu"},
		{"free space above one", func(c *Config) { c.Thresholds.MinFreeSpace = 1.5 }, "min free space"},
		{"negative free space", func(c *Config) { c.Thresholds.MinFreeSpace = -0.1 }, "min free space"},
		{"negative concurrency", func(c *Config) { c.Aggregation.MaxConcurrency = -1 }, "max concurrency"},
		{"rate limiter without rate", func(c *Config) { c.RateLimiter = RateLimiterConfig{Enabled: true, BurstSize: 1} }, "requests per second"},
		{"rate limiter without burst", func(c *Config) { c.RateLimiter = RateLimiterConfig{Enabled: true, RequestsPerSecond: 1} }, "burst size"},
		{"invalid metrics port", func(c *Config) { c.Metrics.Port = 70000 }, "invalid metrics port"},
		{"metrics port collision", func(c *Config) { c.Metrics.Port = c.Server.Port }, "collides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("boundary free space values are valid", func(t *testing.T) {
		for _, v := range []float64{0, 1} {
			cfg := validConfig()
			cfg.Thresholds.MinFreeSpace = v
			assert.NoError(t, cfg.Validate())
		}
	})

	t.Run("disabled metrics skip port checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Metrics = MetricsConfig{Enabled: false}
		assert.NoError(t, cfg.Validate())
	})
}
