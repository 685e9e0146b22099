package generate

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the generation service could not be reached.
var ErrUnavailable = errors.New("generation service unavailable")

// Category classifies a generation failure for error reporting.
type Category string

const (
	// CategoryConnectivity covers network-level failures: refused
	// connections, timeouts, dropped streams.
	CategoryConnectivity Category = "connectivity"

	// CategoryModelNotFound means the requested model is not installed
	// upstream.
	CategoryModelNotFound Category = "model-not-found"

	// CategoryClientRequest covers upstream rejections of the request
	// itself, HTTP 4xx other than 404.
	CategoryClientRequest Category = "client-request"

	// CategoryServerSide covers upstream internal failures, HTTP 5xx and
	// in-stream error frames.
	CategoryServerSide Category = "server-side"
)

// GenerationError is a classified failure from the generation service.
type GenerationError struct {
	Category Category

	// Status is the upstream HTTP status, 0 for transport-level failures.
	Status int

	// Message is safe to present to a client.
	Message string

	err error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation failed (%s, status %d): %s", e.Category, e.Status, e.Message)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Category, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.err
}

// connectivityError wraps a transport failure so that
// errors.Is(err, ErrUnavailable) holds.
func connectivityError(message string, cause error) *GenerationError {
	return &GenerationError{
		Category: CategoryConnectivity,
		Message:  message,
		err:      fmt.Errorf("%w: %v", ErrUnavailable, cause),
	}
}
