package artifact_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ravelchat/ravel/internal/artifact"
	"github.com/ravelchat/ravel/internal/ident"
	"github.com/ravelchat/ravel/internal/log"
	"github.com/ravelchat/ravel/internal/store"
)

func newTestStore(t *testing.T) (*artifact.Store, *store.Memory) {
	t.Helper()
	kv := store.NewMemory()
	return artifact.NewStore(kv, log.NewNop()), kv
}

func TestSaveAllAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	extracted := artifact.Extract(testSession, testParent, "```go\na\n```\n```sql\nb\n```", now)
	if err := s.SaveAll(ctx, testSession, testParent, extracted); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	got, err := s.Get(ctx, testSession, extracted[1].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Language != "sql" || got.Code != "b" {
		t.Errorf("Get returned %q/%q", got.Language, got.Code)
	}

	if _, err := s.Get(ctx, testSession, ident.ArtifactIDFor(testParent, 9)); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("Get absent artifact: got %v, want ErrNotFound", err)
	}
}

// After a continuation the re-extraction may produce fewer blocks at the tail
// than a previous save. SaveAll must overwrite shared indices and remove the
// rest.
func TestSaveAllOverwritesAndPrunes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := artifact.Extract(testSession, testParent, "```go\nold1\n```\n```go\nold2\n```\n```go\nold3\n```", now)
	if err := s.SaveAll(ctx, testSession, testParent, first); err != nil {
		t.Fatalf("SaveAll (first): %v", err)
	}

	second := artifact.Extract(testSession, testParent, "```go\nnew1\n```\n```rust\nnew2\n```", now)
	if err := s.SaveAll(ctx, testSession, testParent, second); err != nil {
		t.Fatalf("SaveAll (second): %v", err)
	}

	listed, err := s.ListByMessage(ctx, testSession, testParent)
	if err != nil {
		t.Fatalf("ListByMessage: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("ListByMessage returned %d artifacts, want 2", len(listed))
	}
	if listed[0].Code != "new1" || listed[1].Code != "new2" {
		t.Errorf("overwrite failed: %q, %q", listed[0].Code, listed[1].Code)
	}
	if _, err := s.Get(ctx, testSession, ident.ArtifactIDFor(testParent, 3)); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("stale third artifact survived: %v", err)
	}
}

func TestListBySessionOrdering(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	secondParent := ident.MessageID("assistant(2)")
	a1 := artifact.Extract(testSession, testParent, "```go\nx\n```\n```go\ny\n```", now)
	a2 := artifact.Extract(testSession, secondParent, "```go\nz\n```", now)
	if err := s.SaveAll(ctx, testSession, testParent, a1); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if err := s.SaveAll(ctx, testSession, secondParent, a2); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	listed, err := s.ListBySession(ctx, testSession)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("ListBySession returned %d artifacts, want 3", len(listed))
	}
	wantOrder := []ident.ArtifactID{a1[0].ID, a1[1].ID, a2[0].ID}
	for i, a := range listed {
		if a.ID != wantOrder[i] {
			t.Errorf("position %d: got %q, want %q", i, a.ID, wantOrder[i])
		}
	}
}

func TestDeleteByMessage(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	extracted := artifact.Extract(testSession, testParent, "```go\na\n```", now)
	if err := s.SaveAll(ctx, testSession, testParent, extracted); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	if err := s.DeleteByMessage(ctx, testSession, testParent); err != nil {
		t.Fatalf("DeleteByMessage: %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("%d records survived DeleteByMessage", kv.Len())
	}
}

func TestOrphans(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	extracted := artifact.Extract(testSession, testParent, "```go\na\n```", now)
	if err := s.SaveAll(ctx, testSession, testParent, extracted); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	// No parent message record exists yet, so the artifact is an orphan.
	orphans, err := s.Orphans(ctx, testSession)
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != extracted[0].ID {
		t.Fatalf("Orphans = %+v, want the saved artifact", orphans)
	}

	if err := kv.Put(ctx, store.MessageKey(testSession, testParent), []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	orphans, err = s.Orphans(ctx, testSession)
	if err != nil {
		t.Fatalf("Orphans: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("Orphans = %+v after parent exists, want none", orphans)
	}
}
