// Package api exposes the conversation engine over HTTP: JSON endpoints for
// sessions and artifacts, and SSE streams for chat turns.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ravelchat/ravel/internal/artifact"
	"github.com/ravelchat/ravel/internal/chat"
	"github.com/ravelchat/ravel/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Orchestrator *chat.Orchestrator // Required
	Sessions     *session.Store     // Required
	Artifacts    *artifact.Store    // Required

	// StorePinger and GeneratorPinger back the /ready probe. Nil disables
	// the corresponding check.
	StorePinger     Pinger
	GeneratorPinger Pinger

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON/SSE API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Artifacts == nil {
		return nil, errors.New("artifact store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{orch: cfg.Orchestrator, logger: logger}
	sh := &sessionHandler{sessions: cfg.Sessions, artifacts: cfg.Artifacts, logger: logger}

	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/chat/continue", ch.continueTurn)

	// Sessions
	mux.HandleFunc("GET /api/v1/sessions", sh.listSessions)
	mux.HandleFunc("POST /api/v1/sessions", sh.createSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.getSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.deleteSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.getMessages)
	mux.HandleFunc("GET /api/v1/sessions/{id}/export", sh.exportSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reconcile", sh.reconcileSession)

	// Artifacts
	mux.HandleFunc("GET /api/v1/sessions/{id}/artifacts", sh.listArtifacts)
	mux.HandleFunc("GET /api/v1/sessions/{id}/artifacts/{artifactID}", sh.getArtifact)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log attributes.
	// CORS precedes RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	hh := &healthHandler{store: cfg.StorePinger, generator: cfg.GeneratorPinger, logger: logger}
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.live)
	topMux.HandleFunc("GET /ready", hh.ready)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
