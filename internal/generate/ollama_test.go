package generate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ravelchat/ravel/internal/generate"
	"github.com/ravelchat/ravel/internal/log"
)

func newClient(t *testing.T, handler http.HandlerFunc) *generate.Ollama {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return generate.NewOllama(generate.OllamaConfig{
		Host:   srv.URL,
		Model:  "test-model",
		Logger: log.NewNop(),
	})
}

func TestGenerateStreaming(t *testing.T) {
	var gotBody map[string]interface{}
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range []string{
			`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
			`{"message":{"role":"assistant","content":" world"},"done":false}`,
			`{"message":{"role":"assistant","content":"."},"done":true,"done_reason":"stop"}`,
		} {
			w.Write([]byte(line + "\n"))
		}
	})

	resp, err := client.Generate(context.Background(), []generate.Message{
		{Role: "user", Content: "greet me"},
	}, generate.Options{Temperature: 0.7, NumCtx: 4096, Unbounded: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(resp.Chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(resp.Chunks))
	}
	if resp.Text() != "Hello world." {
		t.Errorf("Text() = %q", resp.Text())
	}
	if !resp.Done || resp.DoneReason != "stop" {
		t.Errorf("done=%v reason=%q, want done/stop", resp.Done, resp.DoneReason)
	}

	if gotBody["model"] != "test-model" {
		t.Errorf("request model = %v", gotBody["model"])
	}
	if gotBody["stream"] != true {
		t.Errorf("request stream = %v", gotBody["stream"])
	}
	opts, _ := gotBody["options"].(map[string]interface{})
	if opts["num_predict"] != float64(-1) {
		t.Errorf("options.num_predict = %v, want -1", opts["num_predict"])
	}
	if opts["temperature"] != 0.7 {
		t.Errorf("options.temperature = %v", opts["temperature"])
	}
}

func TestGenerateStreamEndsWithoutDone(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"partial"},"done":false}` + "\n"))
	})

	resp, err := client.Generate(context.Background(), nil, generate.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Done {
		t.Error("Done = true for a stream that never finished")
	}
	if resp.Text() != "partial" {
		t.Errorf("Text() = %q", resp.Text())
	}
}

func TestGenerateSkipsMalformedFrames(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all\n"))
		w.Write([]byte(`{"message":{"content":"ok"},"done":true,"done_reason":"stop"}` + "\n"))
	})

	resp, err := client.Generate(context.Background(), nil, generate.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "ok" || !resp.Done {
		t.Errorf("got %q done=%v", resp.Text(), resp.Done)
	}
}

func TestGenerateErrorFrame(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model crashed"}` + "\n"))
	})

	_, err := client.Generate(context.Background(), nil, generate.Options{})
	var genErr *generate.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Generate: got %v, want GenerationError", err)
	}
	if genErr.Category != generate.CategoryServerSide || genErr.Message != "model crashed" {
		t.Errorf("got %+v", genErr)
	}
}

func TestGenerateStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   generate.Category
	}{
		{"missing model", http.StatusNotFound, `{"error":"model \"nope\" not found"}`, generate.CategoryModelNotFound},
		{"bad request", http.StatusBadRequest, `{"error":"invalid options"}`, generate.CategoryClientRequest},
		{"server failure", http.StatusInternalServerError, ``, generate.CategoryServerSide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Generate(context.Background(), nil, generate.Options{})
			var genErr *generate.GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("got %v, want GenerationError", err)
			}
			if genErr.Category != tt.want {
				t.Errorf("category = %q, want %q", genErr.Category, tt.want)
			}
			if genErr.Status != tt.status {
				t.Errorf("status = %d, want %d", genErr.Status, tt.status)
			}
		})
	}
}

func TestGenerateConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse all connections

	client := generate.NewOllama(generate.OllamaConfig{
		Host:   srv.URL,
		Model:  "test-model",
		Logger: log.NewNop(),
	})

	_, err := client.Generate(context.Background(), nil, generate.Options{})
	if !errors.Is(err, generate.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	var genErr *generate.GenerationError
	if !errors.As(err, &genErr) || genErr.Category != generate.CategoryConnectivity {
		t.Errorf("got %v, want connectivity GenerationError", err)
	}
}

func TestPing(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected ping path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPingUnavailable(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if err := client.Ping(context.Background()); !errors.Is(err, generate.ErrUnavailable) {
		t.Fatalf("Ping: got %v, want ErrUnavailable", err)
	}
}
