// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ravel/config.yaml, or ./config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Generation: Ollama host, model and sampling options
//   - Conversation: history window and continuation classifier thresholds
//   - Storage: Redis connection (addr, db, password)
//   - Server: listen address, CORS, proxy trust, rate limiting
//   - Observability: OTLP trace export (see observability.go)
//
// Sensitive data (the Redis password) is never logged; validation lives in
// validation.go and returns sentinel errors checkable with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Conversation limits.
const (
	// DefaultMaxHistoryMessages is the default number of messages sent to
	// the generator per turn.
	DefaultMaxHistoryMessages = 10

	// MaxAllowedHistoryMessages is the absolute maximum to bound prompt size.
	MaxAllowedHistoryMessages = 200
)

// Config stores application configuration.
type Config struct {
	// Generation backend configuration
	OllamaHost  string  `mapstructure:"ollama_host"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	TopK        int     `mapstructure:"top_k"`
	NumCtx      int     `mapstructure:"num_ctx"`

	// Unbounded removes the generation length cap so truncation only ever
	// comes from the model or the context window.
	Unbounded bool `mapstructure:"unbounded"`

	// Conversation history configuration
	MaxHistoryMessages int `mapstructure:"max_history_messages"`

	// Truncation classifier thresholds
	ClassifierTailWindow  int `mapstructure:"classifier_tail_window"`
	ClassifierPunctWindow int `mapstructure:"classifier_punct_window"`
	ClassifierMinLength   int `mapstructure:"classifier_min_length"`

	// Stream pacing
	PauseIntervalMS int `mapstructure:"pause_interval_ms"`
	ChunksPerPause  int `mapstructure:"chunks_per_pause"`

	// Storage configuration
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"` // SENSITIVE: never logged

	// HTTP server configuration
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst"`

	// Logging
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json"`

	// Observability configuration (see observability.go)
	Tracing TracingConfig `mapstructure:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ravel")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// PauseInterval returns the relay pause interval as a duration.
func (c *Config) PauseInterval() time.Duration {
	return time.Duration(c.PauseIntervalMS) * time.Millisecond
}

// SlogLevel maps the configured log level name to a slog.Level.
// Unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Generation defaults
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("model", "llama3.1")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("top_p", 0.9)
	v.SetDefault("top_k", 40)
	v.SetDefault("num_ctx", 8192)
	v.SetDefault("unbounded", true)

	// Conversation defaults
	v.SetDefault("max_history_messages", DefaultMaxHistoryMessages)
	v.SetDefault("classifier_tail_window", 100)
	v.SetDefault("classifier_punct_window", 50)
	v.SetDefault("classifier_min_length", 100)

	// Pacing defaults
	v.SetDefault("pause_interval_ms", 10)
	v.SetDefault("chunks_per_pause", 5)

	// Redis defaults
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	// Server defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.environment", "dev")
	v.SetDefault("tracing.service_name", "ravel")
}

// bindEnvVariables binds environment variables explicitly. Only secrets and
// deployment-specific values get env overrides:
//   - REDIS_PASSWORD: Redis auth (never placed in config.yaml on shared hosts)
//   - RAVEL_REDIS_ADDR / RAVEL_LISTEN_ADDR: container deployments
//   - RAVEL_CORS_ORIGINS: comma-separated list
//   - OTEL_EXPORTER_OTLP_ENDPOINT: standard OTLP override
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("redis_password", "REDIS_PASSWORD")
	mustBind("redis_addr", "RAVEL_REDIS_ADDR")
	mustBind("listen_addr", "RAVEL_LISTEN_ADDR")
	mustBind("cors_origins", "RAVEL_CORS_ORIGINS")
	mustBind("ollama_host", "OLLAMA_HOST")
	mustBind("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}
