package chat

import (
	"fmt"
	"strings"

	"github.com/ravelchat/ravel/internal/files"
	"github.com/ravelchat/ravel/internal/generate"
	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/session"
)

// DefaultMaxHistoryMessages bounds the context when no policy value is set.
const DefaultMaxHistoryMessages = 10

// ContextBuilder assembles the bounded message history sent to the generator.
type ContextBuilder struct {
	// MaxMessages is the history bound. Zero or negative uses
	// DefaultMaxHistoryMessages.
	MaxMessages int
}

// Build maps the most recent history onto role/content pairs.
//
// Text-like attachment contents are appended verbatim to the last user
// message inside labeled delimiter blocks, so the model can tell narrative
// from attachment. Binary attachments contribute only a metadata line.
// A non-empty extra instruction becomes a final synthetic user message.
func (b ContextBuilder) Build(history []*session.Message, attachments []*files.File, extraInstruction string) []generate.Message {
	maxMessages := b.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxHistoryMessages
	}
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	messages := make([]generate.Message, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, generate.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	if len(attachments) > 0 {
		if last := lastUserIndex(history); last >= 0 {
			messages[last].Content += renderAttachments(attachments)
		}
	}

	if extraInstruction != "" {
		messages = append(messages, generate.Message{
			Role:    string(ident.RoleUser),
			Content: extraInstruction,
		})
	}

	return messages
}

// lastUserIndex finds the position of the most recent user message within the
// bounded window.
func lastUserIndex(history []*session.Message) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == ident.RoleUser {
			return i
		}
	}
	return -1
}

// renderAttachments formats attachment context appended to a user message.
func renderAttachments(attachments []*files.File) string {
	var b strings.Builder
	for _, f := range attachments {
		if files.IsTextLike(f) {
			fmt.Fprintf(&b, "\n\n--- attached file: %s (%s, %d bytes) ---\n", f.Name, typeLabel(f), f.Size())
			b.Write(f.Content)
			fmt.Fprintf(&b, "\n--- end of %s ---", f.Name)
		} else {
			fmt.Fprintf(&b, "\n\n[attached file: %s (%s, %d bytes), content not included]", f.Name, typeLabel(f), f.Size())
		}
	}
	return b.String()
}

func typeLabel(f *files.File) string {
	if f.Type != "" {
		return f.Type
	}
	return "unknown type"
}
