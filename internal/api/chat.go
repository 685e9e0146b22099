package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ravelchat/ravel/internal/chat"
	"github.com/ravelchat/ravel/internal/files"
	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/session"
	"github.com/ravelchat/ravel/internal/store"
)

// maxChatBodyBytes bounds the request body, covering message text plus
// base64-encoded attachments.
const maxChatBodyBytes = 16 << 20

// chatHandler serves the streaming turn endpoints.
type chatHandler struct {
	orch   *chat.Orchestrator
	logger *slog.Logger
}

// chatRequest is the POST /api/v1/chat body.
type chatRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Message   string       `json:"message"`
	Files     []fileUpload `json:"files,omitempty"`
}

// fileUpload is one attachment. Content is plain text unless Encoding is
// "base64".
type fileUpload struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"`
}

// continueRequest is the POST /api/v1/chat/continue body.
type continueRequest struct {
	SessionID string `json:"session_id"`
	PriorText string `json:"prior_text,omitempty"`
}

// send handles POST /api/v1/chat: runs one turn and streams its events.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message is required", h.logger)
		return
	}
	if req.SessionID != "" && !ident.Validate(req.SessionID, ident.KindSession) {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "malformed session id", h.logger)
		return
	}

	attachments, err := decodeUploads(req.Files)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_file", err.Error(), h.logger)
		return
	}

	sink, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported", h.logger)
		return
	}

	_, err = h.orch.StartTurn(r.Context(), ident.SessionID(req.SessionID), req.Message, attachments, sink)
	if err != nil {
		if !sink.opened() {
			switch {
			case errors.Is(err, session.ErrSessionNotFound):
				writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
				return
			case errors.Is(err, store.ErrUnavailable):
				writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable", h.logger)
				return
			}
		}
		// The turn already reported its failure on the stream.
		h.logger.Error("turn failed", "error", err, "request_id", requestIDFromContext(r.Context()))
	}
}

// continueTurn handles POST /api/v1/chat/continue: extends the session's
// latest assistant message.
func (h *chatHandler) continueTurn(w http.ResponseWriter, r *http.Request) {
	var req continueRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if !ident.Validate(req.SessionID, ident.KindSession) {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "malformed session id", h.logger)
		return
	}

	sink, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported", h.logger)
		return
	}

	_, err = h.orch.ContinueTurn(r.Context(), ident.SessionID(req.SessionID), req.PriorText, sink)
	if err != nil {
		if !sink.opened() {
			switch {
			case errors.Is(err, session.ErrSessionNotFound):
				writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
				return
			case errors.Is(err, session.ErrNoAssistantTurn):
				writeError(w, http.StatusNotFound, "no_assistant_message", "session has no assistant message to continue", h.logger)
				return
			case errors.Is(err, store.ErrUnavailable):
				writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage is temporarily unavailable", h.logger)
				return
			}
		}
		h.logger.Error("continuation failed", "error", err, "request_id", requestIDFromContext(r.Context()))
	}
}

// decodeBody decodes a bounded JSON body, reporting failures to the client.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON", logger)
		return false
	}
	return true
}

// decodeUploads validates attachments and decodes base64 content.
func decodeUploads(uploads []fileUpload) ([]*files.File, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	out := make([]*files.File, 0, len(uploads))
	for _, u := range uploads {
		content := []byte(u.Content)
		if u.Encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(u.Content)
			if err != nil {
				return nil, fmt.Errorf("file %q: invalid base64 content", u.Name)
			}
			content = decoded
		}

		f := &files.File{Name: u.Name, Type: u.Type, Content: content}
		if err := files.Validate(f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
