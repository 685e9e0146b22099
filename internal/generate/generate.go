// Package generate provides access to the upstream text-generation service.
//
// The Generator contract is buffer-then-replay: Generate returns only after
// the upstream has delivered its final frame, with every content delta
// captured in order. Pacing the delivery to the client is the relay's job,
// not the generator's.
package generate

import (
	"context"
	"strings"
)

// Message is one role/content pair of the generation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options control sampling and context size for one generation.
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
	NumCtx      int

	// Unbounded removes the output-length cap. Truncation is detected after
	// the fact by classification, not prevented by capping output.
	Unbounded bool
}

// Response is the complete output of one generation.
type Response struct {
	// Chunks holds the content deltas in upstream delivery order.
	Chunks []string

	// Done reports whether the upstream delivered its final frame.
	Done bool

	// DoneReason is the upstream's stop reason, e.g. "stop" or "length".
	// Empty when the upstream reported none.
	DoneReason string
}

// Text returns the concatenation of all chunks.
func (r *Response) Text() string {
	var b strings.Builder
	for _, c := range r.Chunks {
		b.WriteString(c)
	}
	return b.String()
}

// Generator is the upstream model interface.
type Generator interface {
	// Generate runs one exchange over the given context. It blocks until the
	// upstream finishes or ctx is cancelled.
	Generate(ctx context.Context, messages []Message, opts Options) (*Response, error)
}
