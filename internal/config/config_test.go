package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultsAreValid(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration does not validate: %v", err)
	}

	if cfg.OllamaHost != "http://localhost:11434" {
		t.Errorf("ollama_host default = %q", cfg.OllamaHost)
	}
	if cfg.MaxHistoryMessages != DefaultMaxHistoryMessages {
		t.Errorf("max_history_messages default = %d", cfg.MaxHistoryMessages)
	}
	if !cfg.Unbounded {
		t.Error("unbounded should default to true")
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should default to disabled")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2xx")
	t.Setenv("RAVEL_LISTEN_ADDR", ":9999")

	v := viper.New()
	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.RedisPassword != "hunter2xx" {
		t.Errorf("redis_password = %q, want env value", cfg.RedisPassword)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("listen_addr = %q, want :9999", cfg.ListenAddr)
	}
}

func TestPauseInterval(t *testing.T) {
	cfg := Config{PauseIntervalMS: 25}
	if got := cfg.PauseInterval(); got != 25*time.Millisecond {
		t.Errorf("PauseInterval() = %v", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := Config{LogLevel: tt.in}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
