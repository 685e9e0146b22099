package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidOllamaHost indicates the Ollama host is not a usable URL.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopP indicates the top_p value is out of range.
	ErrInvalidTopP = errors.New("invalid top_p")

	// ErrInvalidHistoryWindow indicates max_history_messages is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidClassifier indicates a classifier threshold is not positive.
	ErrInvalidClassifier = errors.New("invalid classifier threshold")

	// ErrInvalidPacing indicates a relay pacing value is negative.
	ErrInvalidPacing = errors.New("invalid pacing value")

	// ErrInvalidRedisAddr indicates the Redis address is not host:port.
	ErrInvalidRedisAddr = errors.New("invalid Redis address")

	// ErrInvalidListenAddr indicates the HTTP listen address is malformed.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidRateBurst indicates the rate limit burst is not positive.
	ErrInvalidRateBurst = errors.New("invalid rate burst")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	u, err := url.Parse(c.OllamaHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute URL like http://localhost:11434",
			ErrInvalidOllamaHost, c.OllamaHost)
	}

	if c.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidModelName)
	}

	// Temperature range per Ollama modelfile documentation.
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.TopP < 0.0 || c.TopP > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidTopP, c.TopP)
	}

	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidHistoryWindow, MaxAllowedHistoryMessages, c.MaxHistoryMessages)
	}

	if c.ClassifierTailWindow < 1 || c.ClassifierPunctWindow < 1 || c.ClassifierMinLength < 1 {
		return fmt.Errorf("%w: tail_window, punct_window and min_length must be positive", ErrInvalidClassifier)
	}

	if c.PauseIntervalMS < 0 || c.ChunksPerPause < 0 {
		return fmt.Errorf("%w: pause_interval_ms and chunks_per_pause cannot be negative", ErrInvalidPacing)
	}

	if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
		return fmt.Errorf("%w: %q must be host:port", ErrInvalidRedisAddr, c.RedisAddr)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: %q must be [host]:port", ErrInvalidListenAddr, c.ListenAddr)
	}

	if c.RateBurst < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidRateBurst, c.RateBurst)
	}

	return nil
}
