package artifact

import (
	"strings"
	"time"

	"github.com/ravelchat/ravel/internal/ident"
)

// Extract scans message text for fenced code regions and materializes each as
// an artifact of the parent message.
//
// A region opens on a line whose trimmed form starts with "```"; the first
// whitespace-separated field after the backticks, if any, becomes the
// language. It closes on the next line whose trimmed form is exactly "```".
// A fence that never closes is left as plain text: an unterminated fence
// usually means the response was cut off mid-block, and a half-delivered
// block must not be materialized.
//
// Extraction is idempotent. Artifact ids are "<parent>_code(<k>)" with k the
// 1-based occurrence order, so re-running over unchanged text reproduces the
// same ids and re-running over extended text overwrites by index.
func Extract(sid ident.SessionID, parent ident.MessageID, text string, now time.Time) []*Artifact {
	var artifacts []*Artifact

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "```") {
			continue
		}

		language := ""
		if fields := strings.Fields(trimmed[3:]); len(fields) > 0 {
			language = fields[0]
		}

		closing := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				closing = j
				break
			}
		}
		if closing == -1 {
			break
		}

		k := len(artifacts) + 1
		artifacts = append(artifacts, &Artifact{
			ID:        ident.ArtifactIDFor(parent, k),
			ParentID:  parent,
			SessionID: sid,
			Language:  language,
			Code:      strings.Join(lines[i+1:closing], "\n"),
			CreatedAt: now,
		})
		i = closing
	}

	return artifacts
}
