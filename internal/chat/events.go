// Package chat drives conversation turns: it persists the user's message,
// exchanges context with the generator, classifies the result, relays it to
// the client as an ordered event stream, and persists the assistant's turn
// with its extracted artifacts.
package chat

import (
	"context"

	"github.com/ravelchat/ravel/internal/classify"
	"github.com/ravelchat/ravel/internal/ident"
)

// EventName identifies one client-visible event type.
type EventName string

// Event names, in the order they may appear within one turn. A turn emits
// exactly one session-id event first, any number of content events, one
// completion-status, an optional continuation-available, and a final done.
// A failed turn ends with a single error event and no done sentinel.
const (
	EventSessionID             EventName = "session-id"
	EventContent               EventName = "content"
	EventCompletionStatus      EventName = "completion-status"
	EventContinuationAvailable EventName = "continuation-available"
	EventDone                  EventName = "done"
	EventError                 EventName = "error"
)

// Event is one frame of the client-visible stream. Data is a JSON-encodable
// payload struct.
type Event struct {
	Name EventName
	Data any
}

// EventSink receives the event stream of one turn. Implementations must
// preserve call order; the orchestrator never interleaves turns on one sink.
type EventSink interface {
	Send(ctx context.Context, event Event) error
}

// SessionIDPayload opens every turn's stream.
type SessionIDPayload struct {
	SessionID     ident.SessionID `json:"session_id"`
	UserMessageID ident.MessageID `json:"user_message_id,omitempty"`
}

// ContentPayload carries one incremental text delta, never cumulative text.
type ContentPayload struct {
	Delta string `json:"delta"`
}

// CompletionStatusPayload carries the classifier's verdict.
type CompletionStatusPayload struct {
	Verdict classify.Verdict `json:"verdict"`
}

// ContinuationPayload announces that the turn may be extended.
type ContinuationPayload struct {
	SessionID ident.SessionID `json:"session_id"`
	MessageID ident.MessageID `json:"message_id"`
}

// DonePayload closes a successful turn.
type DonePayload struct {
	SessionID          ident.SessionID    `json:"session_id"`
	AssistantMessageID ident.MessageID    `json:"assistant_message_id"`
	ArtifactIDs        []ident.ArtifactID `json:"artifact_ids,omitempty"`
}

// ErrorPayload closes a failed turn. Message is safe to present to a client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
