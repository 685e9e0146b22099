// Package classify decides whether a generated response finished cleanly or
// was apparently cut off.
//
// The verdict is advisory. It only ever prompts an optional client-initiated
// continuation and never blocks completion of the current turn.
package classify

import "strings"

// Label is the terminal classification of one generation.
type Label string

const (
	// Finished means the model signalled a normal stop and the text shows no
	// sign of truncation.
	Finished Label = "finished"

	// FinishedWithReason means the model signalled completion with a
	// non-standard reason (e.g. "length") but the text itself looks whole.
	FinishedWithReason Label = "finished-with-reason"

	// ApparentlyTruncated means the text looks cut off and a continuation is
	// worth offering.
	ApparentlyTruncated Label = "apparently-truncated"
)

// Verdict is the classifier's result for one generation.
type Verdict struct {
	Label Label `json:"label"`

	// Reason carries the model-reported stop reason when Label is
	// FinishedWithReason, or the heuristic that fired when Label is
	// ApparentlyTruncated.
	Reason string `json:"reason,omitempty"`
}

// Continuable reports whether a continuation should be offered.
func (v Verdict) Continuable() bool {
	return v.Label == ApparentlyTruncated
}

// Config holds the heuristic thresholds.
type Config struct {
	// TailWindow is how many trailing runes the marker scan inspects.
	TailWindow int

	// PunctWindow is how many trailing runes must contain a sentence-closing
	// signal for the text to count as finished.
	PunctWindow int

	// MinLength is the response length below which the punctuation heuristic
	// does not apply. Short answers legitimately end without punctuation.
	MinLength int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TailWindow:  100,
		PunctWindow: 50,
		MinLength:   100,
	}
}

// truncationMarkers are explicit continuations hints models emit when they
// know they were cut off. Matched case-insensitively in the tail window.
var truncationMarkers = []string{
	"[continued]",
	"[truncated]",
	"(continued)",
}

// Classify labels a completed generation.
//
// done and doneReason come from the generator's final frame. An explicit done
// with an empty or "stop" reason is a clean finish unless the text heuristics
// say otherwise; any other reason downgrades to FinishedWithReason. A missing
// done signal means the upstream never completed its frame sequence and the
// text is treated as truncated.
func Classify(text string, done bool, doneReason string, cfg Config) Verdict {
	if cfg.TailWindow <= 0 || cfg.PunctWindow <= 0 || cfg.MinLength <= 0 {
		cfg = DefaultConfig()
	}

	if !done {
		return Verdict{Label: ApparentlyTruncated, Reason: "response ended without completion signal"}
	}

	if reason, hit := truncationHint(text, cfg); hit {
		return Verdict{Label: ApparentlyTruncated, Reason: reason}
	}

	switch doneReason {
	case "", "stop":
		return Verdict{Label: Finished}
	default:
		return Verdict{Label: FinishedWithReason, Reason: doneReason}
	}
}

// truncationHint runs the textual heuristics in priority order.
func truncationHint(text string, cfg Config) (string, bool) {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return "", false
	}

	if strings.HasSuffix(trimmed, "...") || strings.HasSuffix(trimmed, "…") {
		return "trailing ellipsis", true
	}

	tail := tailRunes(trimmed, cfg.TailWindow)
	lowerTail := strings.ToLower(tail)
	for _, marker := range truncationMarkers {
		if strings.Contains(lowerTail, marker) {
			return "explicit marker " + marker, true
		}
	}

	if len([]rune(trimmed)) > cfg.MinLength {
		window := tailRunes(trimmed, cfg.PunctWindow)
		if !hasClosingSignal(window) {
			return "no sentence-terminal punctuation near end", true
		}
	}

	return "", false
}

// hasClosingSignal reports whether the window contains anything that
// plausibly closes a response: sentence-terminal punctuation, a closing code
// fence, or a closing emphasis marker.
func hasClosingSignal(window string) bool {
	if strings.Contains(window, "```") || strings.Contains(window, "**") {
		return true
	}
	for _, r := range window {
		switch r {
		case '.', '!', '?', ':', ';', '。', '！', '？':
			return true
		}
	}
	return false
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
