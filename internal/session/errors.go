package session

import "errors"

// Sentinel errors for session operations. These are part of the Store's
// public API and should be checked with errors.Is().
//
// Example:
//
//	sess, err := store.Get(ctx, id)
//	if errors.Is(err, session.ErrSessionNotFound) {
//	    // Handle missing session
//	}
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound indicates the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoAssistantTurn indicates a continuation was requested for a session
	// that has no assistant message to extend.
	ErrNoAssistantTurn = errors.New("no assistant message to continue")
)
