// Package config provides configuration management for the management server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qoollo/bob-management/internal/client"
	"github.com/qoollo/bob-management/internal/model"
	"github.com/qoollo/bob-management/internal/status"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BOB_MANAGEMENT_CLUSTER_ADDRESS.
const EnvPrefix = "BOB_MANAGEMENT"

// Config holds all configuration for the management server.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Cluster     ClusterConfig     `mapstructure:"cluster"`
	Thresholds  ThresholdsConfig  `mapstructure:"thresholds"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RequestTimeout bounds a whole API request, fan-out included. Zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ClusterConfig describes how to reach the cluster.
type ClusterConfig struct {
	Address         string        `mapstructure:"address"`
	Login           string        `mapstructure:"login"`
	Password        string        `mapstructure:"password"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// Credentials returns basic auth credentials, or nil when no login is configured.
func (c ClusterConfig) Credentials() *client.Credentials {
	if c.Login == "" {
		return nil
	}
	return &client.Credentials{Login: c.Login, Password: c.Password}
}

// ThresholdsConfig holds the health classification thresholds.
type ThresholdsConfig struct {
	MaxCPU       uint64  `mapstructure:"max_cpu"`
	MinFreeSpace float64 `mapstructure:"min_free_space"`
}

// Status converts the thresholds for the classifier.
func (c ThresholdsConfig) Status() status.Thresholds {
	return status.Thresholds{MaxCPU: c.MaxCPU, MinFreeSpace: c.MinFreeSpace}
}

// AggregationConfig tunes the fan-out.
type AggregationConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bob-management/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file falls back to defaults and environment.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key needs a default to be overridable
// from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "25s")

	v.SetDefault("cluster.address", "")
	v.SetDefault("cluster.login", "")
	v.SetDefault("cluster.password", "")
	v.SetDefault("cluster.request_timeout", "5s")
	v.SetDefault("cluster.refresh_interval", "0s")

	v.SetDefault("thresholds.max_cpu", status.DefaultMaxCPU)
	v.SetDefault("thresholds.min_free_space", status.DefaultMinFreeSpace)

	v.SetDefault("aggregation.max_concurrency", 0)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("rate_limiter.enabled", false)
	v.SetDefault("rate_limiter.requests_per_second", 100.0)
	v.SetDefault("rate_limiter.burst_size", 50)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server request timeout must not be negative")
	}

	if c.Cluster.Address == "" {
		return fmt.Errorf("cluster address is required")
	}
	if _, err := model.ParseHostname(c.Cluster.Address); err != nil {
		return fmt.Errorf("invalid cluster address %q: %w", c.Cluster.Address, err)
	}
	if c.Cluster.RequestTimeout <= 0 {
		return fmt.Errorf("cluster request timeout must be positive")
	}
	if c.Cluster.RefreshInterval < 0 {
		return fmt.Errorf("cluster refresh interval must not be negative")
	}

	if c.Thresholds.MaxCPU == 0 {
		return fmt.Errorf("max cpu threshold must be positive")
	}
	if c.Thresholds.MinFreeSpace < 0 || c.Thresholds.MinFreeSpace > 1 {
		return fmt.Errorf("min free space threshold must be within [0, 1], got %v", c.Thresholds.MinFreeSpace)
	}

	if c.Aggregation.MaxConcurrency < 0 {
		return fmt.Errorf("aggregation max concurrency must not be negative")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics port %d collides with server port", c.Metrics.Port)
		}
	}

	return nil
}
