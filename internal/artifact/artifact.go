// Package artifact extracts fenced code blocks from assistant messages and
// persists them as standalone records.
//
// Extraction is deterministic: running it twice over the same text yields the
// same artifacts in the same order, so a continuation can re-extract over the
// combined text and overwrite earlier records in place.
package artifact

import (
	"time"

	"github.com/ravelchat/ravel/internal/ident"
)

// Artifact is one fenced code block lifted out of an assistant message.
//
// Zero values:
//   - ID: "" (invalid, derived from ParentID and block index)
//   - ParentID: "" (invalid, the assistant message the block came from)
//   - SessionID: "" (invalid, required)
//   - Language: "" (fence had no info string)
//   - Code: "" (empty block allowed)
type Artifact struct {
	ID        ident.ArtifactID `json:"id"`
	ParentID  ident.MessageID  `json:"parent_id"`
	SessionID ident.SessionID  `json:"session_id"`
	Language  string           `json:"language,omitempty"`
	Code      string           `json:"code"`

	// Metadata carries free-form annotations, e.g. a display title.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LineCount returns the number of lines in the block's code.
func (a *Artifact) LineCount() int {
	if a.Code == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(a.Code); i++ {
		if a.Code[i] == '\n' {
			n++
		}
	}
	return n
}
