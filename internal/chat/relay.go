package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ravelchat/ravel/internal/classify"
	"github.com/ravelchat/ravel/internal/ident"
)

// ErrEventOrder indicates an attempt to emit events out of contract order.
var ErrEventOrder = errors.New("event emitted out of order")

// RelayConfig controls pacing of content emission.
type RelayConfig struct {
	// PauseInterval is how long the relay sleeps after every
	// ChunksPerPause content events. Zero disables pacing.
	PauseInterval time.Duration

	// ChunksPerPause is the number of content events between pauses.
	ChunksPerPause int
}

// DefaultRelayConfig returns the standard pacing.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PauseInterval:  10 * time.Millisecond,
		ChunksPerPause: 5,
	}
}

// relay stage markers. Stages only move forward; the zero value is the
// initial stage.
const (
	stageStart = iota
	stageStreaming
	stageClassified
	stageClosed
)

// Relay republishes one turn's buffered generator output to an EventSink as
// the ordered event sequence of the stream contract. The upstream response is
// already complete when relaying begins; pacing exists only to avoid
// saturating the client connection.
//
// A Relay serves exactly one turn and is not safe for concurrent use.
type Relay struct {
	sink  EventSink
	cfg   RelayConfig
	stage int
	sent  int
}

// NewRelay creates a Relay for one turn.
func NewRelay(sink EventSink, cfg RelayConfig) *Relay {
	if cfg.ChunksPerPause <= 0 {
		cfg.ChunksPerPause = DefaultRelayConfig().ChunksPerPause
	}
	return &Relay{sink: sink, cfg: cfg}
}

// SessionID opens the stream. Must be the first event of the turn.
func (r *Relay) SessionID(ctx context.Context, sid ident.SessionID, userMsg ident.MessageID) error {
	if r.stage != stageStart {
		return fmt.Errorf("%w: session-id after stream opened", ErrEventOrder)
	}
	if err := r.send(ctx, EventSessionID, SessionIDPayload{SessionID: sid, UserMessageID: userMsg}); err != nil {
		return err
	}
	r.stage = stageStreaming
	return nil
}

// Content emits one delta chunk, pausing after every ChunksPerPause chunks.
func (r *Relay) Content(ctx context.Context, delta string) error {
	if r.stage != stageStreaming {
		return fmt.Errorf("%w: content outside streaming stage", ErrEventOrder)
	}
	if err := r.send(ctx, EventContent, ContentPayload{Delta: delta}); err != nil {
		return err
	}

	r.sent++
	if r.cfg.PauseInterval > 0 && r.sent%r.cfg.ChunksPerPause == 0 {
		select {
		case <-time.After(r.cfg.PauseInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// CompletionStatus emits the classifier verdict, ending the content phase.
func (r *Relay) CompletionStatus(ctx context.Context, verdict classify.Verdict) error {
	if r.stage != stageStreaming {
		return fmt.Errorf("%w: completion-status outside streaming stage", ErrEventOrder)
	}
	if err := r.send(ctx, EventCompletionStatus, CompletionStatusPayload{Verdict: verdict}); err != nil {
		return err
	}
	r.stage = stageClassified
	return nil
}

// ContinuationAvailable announces that the turn may be extended. Only valid
// between completion-status and done.
func (r *Relay) ContinuationAvailable(ctx context.Context, sid ident.SessionID, mid ident.MessageID) error {
	if r.stage != stageClassified {
		return fmt.Errorf("%w: continuation-available before completion-status", ErrEventOrder)
	}
	return r.send(ctx, EventContinuationAvailable, ContinuationPayload{SessionID: sid, MessageID: mid})
}

// Done closes a successful turn.
func (r *Relay) Done(ctx context.Context, payload DonePayload) error {
	if r.stage != stageClassified {
		return fmt.Errorf("%w: done before completion-status", ErrEventOrder)
	}
	if err := r.send(ctx, EventDone, payload); err != nil {
		return err
	}
	r.stage = stageClosed
	return nil
}

// Error closes a failed turn. Valid at any point before the stream closed;
// no done sentinel follows, which is how clients distinguish failure.
func (r *Relay) Error(ctx context.Context, code, message string) error {
	if r.stage == stageClosed {
		return fmt.Errorf("%w: error after stream closed", ErrEventOrder)
	}
	if err := r.send(ctx, EventError, ErrorPayload{Code: code, Message: message}); err != nil {
		return err
	}
	r.stage = stageClosed
	return nil
}

func (r *Relay) send(ctx context.Context, name EventName, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.sink.Send(ctx, Event{Name: name, Data: data}); err != nil {
		return fmt.Errorf("failed to send %s event: %w", name, err)
	}
	return nil
}
