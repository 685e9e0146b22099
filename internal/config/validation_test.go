package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		OllamaHost:            "http://localhost:11434",
		Model:                 "llama3.1",
		Temperature:           0.7,
		TopP:                  0.9,
		TopK:                  40,
		NumCtx:                8192,
		MaxHistoryMessages:    10,
		ClassifierTailWindow:  100,
		ClassifierPunctWindow: 50,
		ClassifierMinLength:   100,
		PauseIntervalMS:       10,
		ChunksPerPause:        5,
		RedisAddr:             "localhost:6379",
		ListenAddr:            ":8080",
		RateBurst:             60,
		LogLevel:              "info",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	var c *Config
	if err := c.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "relative ollama host",
			mutate:  func(c *Config) { c.OllamaHost = "localhost:11434" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "empty ollama host",
			mutate:  func(c *Config) { c.OllamaHost = "" },
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.Model = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "top_p above one",
			mutate:  func(c *Config) { c.TopP = 1.5 },
			wantErr: ErrInvalidTopP,
		},
		{
			name:    "zero history window",
			mutate:  func(c *Config) { c.MaxHistoryMessages = 0 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "oversized history window",
			mutate:  func(c *Config) { c.MaxHistoryMessages = MaxAllowedHistoryMessages + 1 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "zero classifier window",
			mutate:  func(c *Config) { c.ClassifierTailWindow = 0 },
			wantErr: ErrInvalidClassifier,
		},
		{
			name:    "negative pacing",
			mutate:  func(c *Config) { c.PauseIntervalMS = -1 },
			wantErr: ErrInvalidPacing,
		},
		{
			name:    "redis addr without port",
			mutate:  func(c *Config) { c.RedisAddr = "localhost" },
			wantErr: ErrInvalidRedisAddr,
		},
		{
			name:    "listen addr without port",
			mutate:  func(c *Config) { c.ListenAddr = "0.0.0.0" },
			wantErr: ErrInvalidListenAddr,
		},
		{
			name:    "zero rate burst",
			mutate:  func(c *Config) { c.RateBurst = 0 },
			wantErr: ErrInvalidRateBurst,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
