package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ravelchat/ravel/internal/artifact"
	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/session"
)

// sessionHandler serves session CRUD, transcript access and export.
type sessionHandler struct {
	sessions  *session.Store
	artifacts *artifact.Store
	logger    *slog.Logger
}

// listSessions handles GET /api/v1/sessions.
func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list sessions", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions}, h.logger)
}

// createSession handles POST /api/v1/sessions.
func (h *sessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create session", h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, sess, h.logger)
}

// getSession handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(r.Context(), sid)
	if err != nil {
		h.respondSessionError(w, sid, err)
		return
	}
	writeJSON(w, http.StatusOK, sess, h.logger)
}

// getMessages handles GET /api/v1/sessions/{id}/messages.
func (h *sessionHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if _, err := h.sessions.Get(r.Context(), sid); err != nil {
		h.respondSessionError(w, sid, err)
		return
	}
	messages, err := h.sessions.Messages(r.Context(), sid)
	if err != nil {
		h.logger.Error("loading messages", "error", err, "session", sid)
		writeError(w, http.StatusInternalServerError, "load_failed", "failed to load messages", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages}, h.logger)
}

// exportSession handles GET /api/v1/sessions/{id}/export?format=json|text|markdown.
func (h *sessionHandler) exportSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	format, err := session.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format", err.Error(), h.logger)
		return
	}

	sess, err := h.sessions.Get(r.Context(), sid)
	if err != nil {
		h.respondSessionError(w, sid, err)
		return
	}
	messages, err := h.sessions.Messages(r.Context(), sid)
	if err != nil {
		h.logger.Error("loading messages for export", "error", err, "session", sid)
		writeError(w, http.StatusInternalServerError, "export_failed", "failed to export session", h.logger)
		return
	}

	payload, contentType, err := session.Export(format, sess, messages)
	if err != nil {
		h.logger.Error("rendering export", "error", err, "session", sid)
		writeError(w, http.StatusInternalServerError, "export_failed", "failed to export session", h.logger)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(sid)+exportExtension(format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.logger.Debug("failed to write export body", "error", err)
	}
}

// deleteSession handles DELETE /api/v1/sessions/{id}: purges the session and
// all descendant records.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Purge(r.Context(), sid); err != nil {
		h.respondSessionError(w, sid, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reconcileSession handles POST /api/v1/sessions/{id}/reconcile: recomputes
// derived metadata and reports orphaned artifacts.
func (h *sessionHandler) reconcileSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Reconcile(r.Context(), sid)
	if err != nil {
		h.respondSessionError(w, sid, err)
		return
	}
	orphans, err := h.artifacts.Orphans(r.Context(), sid)
	if err != nil {
		h.logger.Error("checking for orphaned artifacts", "error", err, "session", sid)
		writeError(w, http.StatusInternalServerError, "reconcile_failed", "failed to reconcile session", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":          sess,
		"orphan_artifacts": orphans,
	}, h.logger)
}

// listArtifacts handles GET /api/v1/sessions/{id}/artifacts.
func (h *sessionHandler) listArtifacts(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if _, err := h.sessions.Get(r.Context(), sid); err != nil {
		h.respondSessionError(w, sid, err)
		return
	}
	artifacts, err := h.artifacts.ListBySession(r.Context(), sid)
	if err != nil {
		h.logger.Error("listing artifacts", "error", err, "session", sid)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list artifacts", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts}, h.logger)
}

// getArtifact handles GET /api/v1/sessions/{id}/artifacts/{artifactID}.
func (h *sessionHandler) getArtifact(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	raw := r.PathValue("artifactID")
	if !ident.Validate(raw, ident.KindArtifact) {
		writeError(w, http.StatusBadRequest, "invalid_artifact_id", "malformed artifact id", h.logger)
		return
	}

	art, err := h.artifacts.Get(r.Context(), sid, ident.ArtifactID(raw))
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact_not_found", "artifact does not exist", h.logger)
			return
		}
		h.logger.Error("loading artifact", "error", err, "session", sid, "artifact", raw)
		writeError(w, http.StatusInternalServerError, "load_failed", "failed to load artifact", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, art, h.logger)
}

// sessionID validates the {id} path segment. Malformed ids are rejected
// before they can reach the store.
func (h *sessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (ident.SessionID, bool) {
	raw := r.PathValue("id")
	if !ident.Validate(raw, ident.KindSession) {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "malformed session id", h.logger)
		return "", false
	}
	return ident.SessionID(raw), true
}

func (h *sessionHandler) respondSessionError(w http.ResponseWriter, sid ident.SessionID, err error) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist", h.logger)
		return
	}
	h.logger.Error("session operation failed", "error", err, "session", sid)
	writeError(w, http.StatusInternalServerError, "session_error", "session operation failed", h.logger)
}

func exportExtension(format session.ExportFormat) string {
	switch format {
	case session.FormatText:
		return ".txt"
	case session.FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}
