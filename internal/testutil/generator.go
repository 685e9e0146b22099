package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/ravelchat/ravel/internal/generate"
)

// MockGenerator provides deterministic generator responses for testing.
// It matches the last user message against registered patterns and returns
// the corresponding scripted response.
//
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback *generate.Response
	err      error
	calls    []MockCall
}

type mockRule struct {
	pattern  string // substring match in the last user message, lowercased
	response *generate.Response
}

// MockCall records a single call to the mock generator.
type MockCall struct {
	Messages []generate.Message
	Options  generate.Options
}

// NewMockGenerator creates a mock whose fallback response streams the given
// chunks and finishes with a clean stop.
func NewMockGenerator(fallbackChunks ...string) *MockGenerator {
	return &MockGenerator{
		fallback: &generate.Response{Chunks: fallbackChunks, Done: true, DoneReason: "stop"},
	}
}

// AddResponse registers a pattern-response pair. When the last user message
// contains the pattern (case-insensitive), the response is returned. First
// match wins.
func (m *MockGenerator) AddResponse(pattern string, resp *generate.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), response: resp})
}

// FailWith makes every subsequent call return err.
func (m *MockGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded calls.
func (m *MockGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// LastCall returns the most recent call, or nil if none were made.
func (m *MockGenerator) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	cp := m.calls[len(m.calls)-1]
	return &cp
}

// Generate implements generate.Generator.
func (m *MockGenerator) Generate(ctx context.Context, messages []generate.Message, opts generate.Options) (*generate.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Messages: append([]generate.Message(nil), messages...),
		Options:  opts,
	})

	if m.err != nil {
		return nil, m.err
	}

	lastUser := strings.ToLower(lastUserContent(messages))
	for _, rule := range m.rules {
		if strings.Contains(lastUser, rule.pattern) {
			return cloneResponse(rule.response), nil
		}
	}
	return cloneResponse(m.fallback), nil
}

func lastUserContent(messages []generate.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func cloneResponse(r *generate.Response) *generate.Response {
	cp := *r
	cp.Chunks = append([]string(nil), r.Chunks...)
	return &cp
}
