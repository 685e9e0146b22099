package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	// Host is the base URL, e.g. "http://localhost:11434".
	Host string

	// Model is the model name passed on every request.
	Model string

	// HTTPClient overrides the transport (nil = http.DefaultClient). The
	// client must not impose a response timeout: generation length is
	// unbounded and any deadline belongs to the caller's context.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Ollama talks to an Ollama server's /api/chat endpoint.
//
// Ollama is safe for concurrent use by multiple goroutines.
type Ollama struct {
	host   string
	model  string
	client *http.Client
	logger *slog.Logger
}

// NewOllama creates a new Ollama client.
func NewOllama(cfg OllamaConfig) *Ollama {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ollama{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: client,
		logger: logger,
	}
}

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

// chatRequest is the /api/chat request body.
type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// chatFrame is one NDJSON line of the streamed response.
type chatFrame struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

// Generate implements Generator. The full NDJSON stream is drained before
// returning; every frame's content delta is kept as one chunk.
func (o *Ollama) Generate(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
		Options:  encodeOptions(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, connectivityError("could not reach the model service", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			o.logger.Warn("failed to close generation response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, o.statusError(resp)
	}

	return o.drain(resp.Body)
}

// Ping checks that the Ollama server is reachable, for readiness probes.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// drain reads NDJSON frames until the done frame or EOF. Malformed frames are
// skipped with a warning; an explicit error frame fails the generation.
func (o *Ollama) drain(body io.Reader) (*Response, error) {
	out := &Response{}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frame chatFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			o.logger.Warn("skipping malformed generation frame", "error", err)
			continue
		}
		if frame.Error != "" {
			return nil, &GenerationError{
				Category: CategoryServerSide,
				Message:  frame.Error,
			}
		}

		if frame.Message.Content != "" {
			out.Chunks = append(out.Chunks, frame.Message.Content)
		}
		if frame.Done {
			out.Done = true
			out.DoneReason = frame.DoneReason
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, connectivityError("model service connection dropped mid-response", err)
	}

	return out, nil
}

// statusError maps a non-200 response to a classified error.
func (o *Ollama) statusError(resp *http.Response) error {
	msg := readErrorBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if msg == "" {
			msg = fmt.Sprintf("model %q is not available", o.model)
		}
		return &GenerationError{Category: CategoryModelNotFound, Status: resp.StatusCode, Message: msg}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if msg == "" {
			msg = "the model service rejected the request"
		}
		return &GenerationError{Category: CategoryClientRequest, Status: resp.StatusCode, Message: msg}
	default:
		if msg == "" {
			msg = "the model service failed"
		}
		return &GenerationError{Category: CategoryServerSide, Status: resp.StatusCode, Message: msg}
	}
}

// readErrorBody extracts the "error" field of a JSON error body, if any.
func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 8*1024))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return payload.Error
}

// encodeOptions maps Options onto Ollama's option keys. Zero-valued sampling
// fields are omitted so the server's model defaults apply.
func encodeOptions(opts Options) map[string]interface{} {
	m := map[string]interface{}{}
	if opts.Temperature > 0 {
		m["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		m["top_p"] = opts.TopP
	}
	if opts.TopK > 0 {
		m["top_k"] = opts.TopK
	}
	if opts.NumCtx > 0 {
		m["num_ctx"] = opts.NumCtx
	}
	if opts.Unbounded {
		m["num_predict"] = -1
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
