package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ravelchat/ravel/internal/ident"
)

// ExportFormat selects the rendering used by Export.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatText     ExportFormat = "text"
	FormatMarkdown ExportFormat = "markdown"
)

// ParseFormat maps a query-string value to an ExportFormat. The empty string
// defaults to JSON.
func ParseFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Export renders a session transcript in the requested format and returns the
// payload with its media type.
func Export(format ExportFormat, sess *Session, messages []*Message) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload := struct {
			Session  *Session   `json:"session"`
			Messages []*Message `json:"messages"`
		}{sess, messages}
		raw, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode transcript: %w", err)
		}
		return raw, "application/json", nil

	case FormatText:
		var b strings.Builder
		fmt.Fprintf(&b, "Session %s\n", sess.ID)
		fmt.Fprintf(&b, "Created %s\n\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		for _, msg := range messages {
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.CreatedAt.Format("15:04:05"))
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		}
		return []byte(b.String()), "text/plain; charset=utf-8", nil

	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# Session %s\n\n", sess.ID)
		fmt.Fprintf(&b, "Created %s\n\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		for _, msg := range messages {
			fmt.Fprintf(&b, "## %s (%s)\n\n", roleHeading(msg.Role), msg.CreatedAt.Format("15:04:05"))
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
			for _, f := range msg.Files {
				fmt.Fprintf(&b, "- attached: `%s` (%d bytes)\n", f.Name, f.Size)
			}
			if len(msg.Files) > 0 {
				b.WriteString("\n")
			}
		}
		return []byte(b.String()), "text/markdown; charset=utf-8", nil

	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

func roleHeading(role ident.Role) string {
	switch role {
	case ident.RoleUser:
		return "User"
	case ident.RoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}
