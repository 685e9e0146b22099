package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/store"
)

// ErrNotFound is returned when the requested artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store persists extracted artifacts on a key-value backend.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	kv     store.KV
	logger *slog.Logger
}

// NewStore creates a new Store.
func NewStore(kv store.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		kv:     kv,
		logger: logger,
	}
}

// SaveAll replaces a message's artifact set with the given extraction result.
//
// Records are written by deterministic id, so re-saving after a continuation
// overwrites blocks that kept their occurrence index. Stored artifacts at
// indices beyond the new set are deleted: they belonged to an earlier
// extraction whose blocks no longer exist at those positions.
func (s *Store) SaveAll(ctx context.Context, sid ident.SessionID, parent ident.MessageID, artifacts []*Artifact) error {
	for _, a := range artifacts {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode artifact %s: %w", a.ID, err)
		}
		if err := s.kv.Put(ctx, store.ArtifactKey(sid, a.ID), raw); err != nil {
			return fmt.Errorf("failed to store artifact %s: %w", a.ID, err)
		}
	}

	stale, err := s.kv.List(ctx, store.MessageArtifactPrefix(sid, parent))
	if err != nil {
		return fmt.Errorf("failed to list artifacts for %s: %w", parent, err)
	}
	for _, key := range stale {
		aid := ident.ArtifactID(key[len(store.ArtifactPrefix(sid)):])
		_, k, ok := ident.ParseArtifactID(aid)
		if !ok {
			s.logger.Warn("skipping malformed artifact key", "key", key)
			continue
		}
		if k <= len(artifacts) {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete stale artifact %s: %w", aid, err)
		}
		s.logger.Debug("deleted stale artifact", "session", sid, "artifact", aid)
	}

	return nil
}

// Get retrieves a single artifact.
//
// Returns ErrNotFound if no record exists.
func (s *Store) Get(ctx context.Context, sid ident.SessionID, aid ident.ArtifactID) (*Artifact, error) {
	raw, err := s.kv.Get(ctx, store.ArtifactKey(sid, aid))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, aid, sid)
		}
		return nil, fmt.Errorf("failed to load artifact %s: %w", aid, err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", aid, err)
	}
	return &a, nil
}

// ListByMessage returns a message's artifacts in occurrence order.
func (s *Store) ListByMessage(ctx context.Context, sid ident.SessionID, parent ident.MessageID) ([]*Artifact, error) {
	return s.list(ctx, sid, store.MessageArtifactPrefix(sid, parent))
}

// ListBySession returns all artifacts of a session, grouped by parent message
// and in occurrence order within each message.
func (s *Store) ListBySession(ctx context.Context, sid ident.SessionID) ([]*Artifact, error) {
	return s.list(ctx, sid, store.ArtifactPrefix(sid))
}

func (s *Store) list(ctx context.Context, sid ident.SessionID, prefix string) ([]*Artifact, error) {
	keys, err := s.kv.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts under %s: %w", prefix, err)
	}

	artifacts := make([]*Artifact, 0, len(keys))
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load artifact record %s: %w", key, err)
		}

		var a Artifact
		if err := json.Unmarshal(raw, &a); err != nil {
			s.logger.Warn("skipping undecodable artifact record", "key", key, "error", err)
			continue
		}
		artifacts = append(artifacts, &a)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		_, ak, _ := ident.ParseArtifactID(a.ID)
		_, bk, _ := ident.ParseArtifactID(b.ID)
		return ak < bk
	})
	return artifacts, nil
}

// Orphans returns artifacts whose parent message record no longer exists,
// e.g. after a partially failed purge. Orphans are reported, never deleted
// here; removal is an explicit caller decision.
func (s *Store) Orphans(ctx context.Context, sid ident.SessionID) ([]*Artifact, error) {
	artifacts, err := s.ListBySession(ctx, sid)
	if err != nil {
		return nil, err
	}

	var orphans []*Artifact
	for _, a := range artifacts {
		_, err := s.kv.Get(ctx, store.MessageKey(sid, a.ParentID))
		if errors.Is(err, store.ErrNotFound) {
			orphans = append(orphans, a)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check parent of %s: %w", a.ID, err)
		}
	}
	return orphans, nil
}

// DeleteByMessage removes all artifacts of a single message.
func (s *Store) DeleteByMessage(ctx context.Context, sid ident.SessionID, parent ident.MessageID) error {
	return s.deletePrefix(ctx, store.MessageArtifactPrefix(sid, parent))
}

// DeleteBySession removes all artifacts of a session.
func (s *Store) DeleteBySession(ctx context.Context, sid ident.SessionID) error {
	return s.deletePrefix(ctx, store.ArtifactPrefix(sid))
}

func (s *Store) deletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.kv.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list artifacts under %s: %w", prefix, err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
