package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/store"
)

// PreviewRunes is the maximum preview length kept on the session record.
const PreviewRunes = 100

// Store manages session and message persistence on a key-value backend.
//
// Store is safe for concurrent use by multiple goroutines; the only shared
// mutable state is the per-role message counter, which the backend increments
// atomically.
type Store struct {
	kv     store.KV
	logger *slog.Logger
}

// New creates a new Store.
//
// Parameters:
//   - kv: Key-value backend (Redis in production, store.Memory in tests)
//   - logger: Logger for debugging (nil = use default)
func New(kv store.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		kv:     kv,
		logger: logger,
	}
}

// Create allocates a new session with a fresh timestamp-derived id and
// persists its metadata record.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:          ident.NewSessionID(),
		CreatedAt:   now,
		LastUpdated: now,
	}

	if err := s.putSession(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Debug("created session", "id", sess.ID)
	return sess, nil
}

// Get retrieves a session by id.
//
// Returns ErrSessionNotFound if no record exists.
func (s *Store) Get(ctx context.Context, id ident.SessionID) (*Session, error) {
	raw, err := s.kv.Get(ctx, store.SessionKey(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	keys, err := s.kv.List(ctx, store.SessionPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(keys))
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			// A session deleted between List and Get is not an error.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load session record %s: %w", key, err)
		}

		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			s.logger.Warn("skipping undecodable session record", "key", key, "error", err)
			continue
		}
		sessions = append(sessions, &sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].LastUpdated.Equal(sessions[j].LastUpdated) {
			return sessions[i].LastUpdated.After(sessions[j].LastUpdated)
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// Purge removes a session and everything derived from it: the metadata
// record, all messages, all artifacts and both role counters.
//
// Returns ErrSessionNotFound if the session does not exist. Partial records
// left behind by an earlier failed purge are still removed on retry.
func (s *Store) Purge(ctx context.Context, id ident.SessionID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	prefixes := []string{
		store.MessagePrefix(id),
		store.ArtifactPrefix(id),
		store.CounterPrefix(id),
	}
	for _, prefix := range prefixes {
		keys, err := s.kv.List(ctx, prefix)
		if err != nil {
			return fmt.Errorf("failed to list %s records: %w", prefix, err)
		}
		for _, key := range keys {
			if err := s.kv.Delete(ctx, key); err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
		}
	}

	if err := s.kv.Delete(ctx, store.SessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	s.logger.Debug("purged session", "id", id)
	return nil
}

// NextMessageID allocates the next message id for a role within a session.
// Allocation is atomic: concurrent callers receive distinct, gap-free
// sequence numbers per (session, role) pair, starting at 1.
func (s *Store) NextMessageID(ctx context.Context, sid ident.SessionID, role ident.Role) (ident.MessageID, error) {
	n, err := s.kv.AtomicIncrement(ctx, store.CounterKey(sid, role))
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s message id for %s: %w", role, sid, err)
	}
	return ident.MessageIDFor(role, n), nil
}

// AppendMessage persists a new message and folds it into the session
// metadata: message count, last-updated timestamp and preview.
//
// The message id must have been allocated with NextMessageID; appending does
// not consume a counter value itself, so a message prepared but never
// appended leaves a gap only if its id was allocated.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	sess, err := s.Get(ctx, msg.SessionID)
	if err != nil {
		return err
	}

	if err := s.putMessage(ctx, msg); err != nil {
		return err
	}

	sess.MessageCount++
	sess.LastUpdated = msg.CreatedAt
	sess.Preview = previewOf(msg.Content)
	if err := s.putSession(ctx, sess); err != nil {
		return err
	}

	s.logger.Debug("appended message",
		"session", msg.SessionID, "message", msg.ID, "role", msg.Role)
	return nil
}

// UpdateAssistantMessage overwrites an existing assistant message in place,
// keeping its id. Used by continuation: the extended content replaces the
// stored record rather than creating a new turn, so the message count is
// unchanged.
func (s *Store) UpdateAssistantMessage(ctx context.Context, msg *Message) error {
	if msg.Role != ident.RoleAssistant {
		return fmt.Errorf("cannot update %s message %s in place", msg.Role, msg.ID)
	}

	sess, err := s.Get(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	if _, err := s.Message(ctx, msg.SessionID, msg.ID); err != nil {
		return err
	}

	if err := s.putMessage(ctx, msg); err != nil {
		return err
	}

	sess.LastUpdated = time.Now().UTC()
	sess.Preview = previewOf(msg.Content)
	if err := s.putSession(ctx, sess); err != nil {
		return err
	}

	s.logger.Debug("updated assistant message",
		"session", msg.SessionID, "message", msg.ID)
	return nil
}

// Message retrieves a single message.
//
// Returns ErrMessageNotFound if no record exists.
func (s *Store) Message(ctx context.Context, sid ident.SessionID, mid ident.MessageID) (*Message, error) {
	raw, err := s.kv.Get(ctx, store.MessageKey(sid, mid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s in %s", ErrMessageNotFound, mid, sid)
		}
		return nil, fmt.Errorf("failed to load message %s: %w", mid, err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", mid, err)
	}
	return &msg, nil
}

// Messages returns all messages of a session in conversation order.
//
// The backend enumerates keys in arbitrary order, so ordering is
// reconstructed here: by creation time, with the user turn before the
// assistant turn when timestamps collide, then by sequence number.
func (s *Store) Messages(ctx context.Context, sid ident.SessionID) ([]*Message, error) {
	keys, err := s.kv.List(ctx, store.MessagePrefix(sid))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for %s: %w", sid, err)
	}

	messages := make([]*Message, 0, len(keys))
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load message record %s: %w", key, err)
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("skipping undecodable message record", "key", key, "error", err)
			continue
		}
		messages = append(messages, &msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		a, b := messages[i], messages[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Role != b.Role {
			return a.Role == ident.RoleUser
		}
		_, an, _ := ident.ParseMessageID(a.ID)
		_, bn, _ := ident.ParseMessageID(b.ID)
		return an < bn
	})
	return messages, nil
}

// LatestAssistant returns the assistant message with the highest sequence
// number, the only turn a continuation may extend.
//
// Returns ErrNoAssistantTurn if the session has no assistant message.
func (s *Store) LatestAssistant(ctx context.Context, sid ident.SessionID) (*Message, error) {
	messages, err := s.Messages(ctx, sid)
	if err != nil {
		return nil, err
	}

	var latest *Message
	var latestSeq int64
	for _, msg := range messages {
		if msg.Role != ident.RoleAssistant {
			continue
		}
		_, n, ok := ident.ParseMessageID(msg.ID)
		if !ok {
			continue
		}
		if latest == nil || n > latestSeq {
			latest, latestSeq = msg, n
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAssistantTurn, sid)
	}
	return latest, nil
}

// Reconcile recomputes derived session metadata from the message records and
// rewrites the session if it drifted, e.g. after a crash between a message
// write and the metadata update. Returns the reconciled session.
func (s *Store) Reconcile(ctx context.Context, sid ident.SessionID) (*Session, error) {
	sess, err := s.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	messages, err := s.Messages(ctx, sid)
	if err != nil {
		return nil, err
	}

	count := len(messages)
	lastUpdated := sess.CreatedAt
	preview := ""
	if count > 0 {
		last := messages[count-1]
		lastUpdated = last.CreatedAt
		preview = previewOf(last.Content)
	}

	if sess.MessageCount == count && sess.LastUpdated.Equal(lastUpdated) && sess.Preview == preview {
		return sess, nil
	}

	s.logger.Info("reconciling session metadata",
		"session", sid, "stored_count", sess.MessageCount, "actual_count", count)

	sess.MessageCount = count
	sess.LastUpdated = lastUpdated
	sess.Preview = preview
	if err := s.putSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) putSession(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	if err := s.kv.Put(ctx, store.SessionKey(sess.ID), raw); err != nil {
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) putMessage(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
	}
	if err := s.kv.Put(ctx, store.MessageKey(msg.SessionID, msg.ID), raw); err != nil {
		return fmt.Errorf("failed to store message %s: %w", msg.ID, err)
	}
	return nil
}

// previewOf returns the last PreviewRunes runes of content.
func previewOf(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewRunes {
		return content
	}
	return string(runes[len(runes)-PreviewRunes:])
}
