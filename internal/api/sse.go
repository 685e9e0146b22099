package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ravelchat/ravel/internal/chat"
)

// sseWriter streams chat events to one client connection as Server-Sent
// Events. It implements chat.EventSink: event names map to SSE event types
// and payloads are JSON-encoded into the data field.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

// opened reports whether any event reached the wire. Until then the handler
// may still send a plain HTTP error response instead.
func (s *sseWriter) opened() bool { return s.wrote }

// newSSEWriter prepares the response for SSE streaming and sets headers.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

// Send implements chat.EventSink.
func (s *sseWriter) Send(ctx context.Context, event chat.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("client connection closed: %w", err)
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event.Name, err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event.Name); err != nil {
		return fmt.Errorf("failed to write event name: %w", err)
	}
	s.wrote = true
	// SSE data must not contain raw newlines; each line needs its own
	// "data: " prefix.
	for _, line := range strings.Split(string(payload), "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return fmt.Errorf("failed to write data line: %w", err)
		}
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write event terminator: %w", err)
	}

	s.flusher.Flush()
	return nil
}
