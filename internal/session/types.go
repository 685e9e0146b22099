// Package session provides session and message persistence for conversations.
//
// A session is an ordered exchange of user and assistant messages. Records are
// stored as JSON values in a key-value store; message ordering is recovered
// from creation timestamps and per-role sequence numbers rather than from key
// enumeration order.
package session

import (
	"time"

	"github.com/ravelchat/ravel/internal/ident"
)

// Session is the metadata record for one conversation.
type Session struct {
	ID          ident.SessionID `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `json:"last_updated"`

	// MessageCount is the number of persisted messages, both roles combined.
	MessageCount int `json:"message_count"`

	// Preview is a short tail of the most recent message, for listings.
	Preview string `json:"preview,omitempty"`
}

// FileRef records an attachment that accompanied a user message. Only the
// descriptor is kept with the message; text content is folded into the
// generation context at request time and not persisted separately.
type FileRef struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size"`

	// Format is the detected structure of the content (json, csv, xml,
	// plain; unknown for binary), sniffed once at upload time.
	Format string `json:"format,omitempty"`
}

// Message is one turn in a session.
type Message struct {
	ID        ident.MessageID `json:"id"`
	SessionID ident.SessionID `json:"session_id"`
	Role      ident.Role      `json:"role"`
	Content   string          `json:"content"`

	// Files lists attachments supplied with a user message. Empty for
	// assistant messages.
	Files []FileRef `json:"files,omitempty"`

	// ArtifactIDs lists code blocks extracted from an assistant message, in
	// document order. Empty for user messages.
	ArtifactIDs []ident.ArtifactID `json:"artifact_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
