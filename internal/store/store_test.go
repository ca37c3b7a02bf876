package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"engram/internal/config"
	"engram/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.StoreConfig{
		DataDir:           t.TempDir(),
		BusyTimeout:       5 * time.Second,
		MaxFTSCandidates:  20,
		MaxScanCandidates: 1000,
	}
	s, err := Open(cfg, 4, slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMemory(id string) domain.Memory {
	now := time.Now().UnixMilli()
	return domain.Memory{
		ID:         id,
		Content:    "I prefer dark mode",
		Category:   domain.CategoryPreference,
		Confidence: 0.8,
		Embedding:  []float32{1, 0, 0, 0},
		Source:     domain.SourceAPI,
		Namespace:  "default",
		Tags:       []string{"ui"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := testMemory(newID())
	if err := s.Put(ctx, m); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != m.Content {
		t.Errorf("Content = %q, want %q", got.Content, m.Content)
	}
	if len(got.Embedding) != 4 {
		t.Errorf("Embedding len = %d, want 4", len(got.Embedding))
	}
	if got.Tags[0] != "ui" {
		t.Errorf("Tags = %v", got.Tags)
	}
}

func TestPutDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := testMemory(newID())

	if err := s.Put(ctx, m); err != nil {
		t.Fatalf("Put: %v", err)
	}
	err := s.Put(ctx, m)
	if domain.ErrorKindOf(err) != domain.KindDuplicateID {
		t.Fatalf("expected KindDuplicateID, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if domain.ErrorKindOf(err) != domain.KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestListFiltersByNamespace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testMemory(newID())
	a.Namespace = "alpha"
	b := testMemory(newID())
	b.Namespace = "beta"
	if err := s.Put(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, b); err != nil {
		t.Fatal(err)
	}

	rows, total, err := s.List(ctx, domain.ListFilter{Namespace: "alpha"}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("got %d/%d rows, want 1/1", len(rows), total)
	}
	if rows[0].Namespace != "alpha" {
		t.Errorf("namespace leaked: %q", rows[0].Namespace)
	}
}

func TestDeleteByIDCascadesContradictions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m1 := testMemory(newID())
	m2 := testMemory(newID())
	if err := s.Put(ctx, m1); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, m2); err != nil {
		t.Fatal(err)
	}

	c := domain.Contradiction{
		ID: newID(), Memory1ID: m1.ID, Memory2ID: m2.ID, Entity: "editor",
		Confidence: 0.9, Reason: "polarity", Status: domain.ContradictionUnresolved,
		DetectedAt: time.Now().UnixMilli(),
	}
	if err := s.PutContradiction(ctx, c); err != nil {
		t.Fatalf("PutContradiction: %v", err)
	}

	deleted, err := s.DeleteByID(ctx, m1.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteByID: %v, deleted=%v", err, deleted)
	}

	cs, err := s.ListContradictions(ctx, "", "", "")
	if err != nil {
		t.Fatalf("ListContradictions: %v", err)
	}
	if len(cs) != 0 {
		t.Errorf("expected cascade delete, got %d contradictions", len(cs))
	}
}

func TestBumpAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := testMemory(newID())
	if err := s.Put(ctx, m); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UnixMilli()
	if err := s.BumpAccess(ctx, []string{m.ID}, now); err != nil {
		t.Fatalf("BumpAccess: %v", err)
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
	if got.LastAccessed == nil || *got.LastAccessed != now {
		t.Errorf("LastAccessed = %v, want %d", got.LastAccessed, now)
	}
}

func TestFTSQueryFindsMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := testMemory(newID())
	m.Content = "I prefer TypeScript over JavaScript"
	if err := s.Put(ctx, m); err != nil {
		t.Fatal(err)
	}

	hits, err := s.FTSQuery(ctx, "default", "", "typescript", 10)
	if err != nil {
		t.Fatalf("FTSQuery: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != m.ID {
		t.Fatalf("hits = %+v, want exactly %q", hits, m.ID)
	}
}

func TestFTSQueryDeletedRowNotReturned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := testMemory(newID())
	m.Content = "unique marker zyxwvu"
	if err := s.Put(ctx, m); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DeleteByID(ctx, m.ID); err != nil {
		t.Fatal(err)
	}

	hits, err := s.FTSQuery(ctx, "", "", "zyxwvu", 10)
	if err != nil {
		t.Fatalf("FTSQuery: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %d", len(hits))
	}
}

func TestIterateEmbeddedScopesNamespace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := testMemory(newID())
	a.Namespace = "alpha"
	b := testMemory(newID())
	b.Namespace = "beta"
	if err := s.Put(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, b); err != nil {
		t.Fatal(err)
	}

	rows, err := s.IterateEmbedded(ctx, "alpha", domain.ListFilter{}, 100)
	if err != nil {
		t.Fatalf("IterateEmbedded: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != a.ID {
		t.Fatalf("rows = %+v, want exactly %q", rows, a.ID)
	}
}

func TestApplyMergeDeletesLosersAndCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	winner := testMemory(newID())
	loser := testMemory(newID())
	if err := s.Put(ctx, winner); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, loser); err != nil {
		t.Fatal(err)
	}
	c := domain.Contradiction{
		ID: newID(), Memory1ID: loser.ID, Memory2ID: winner.ID, Entity: "x",
		Confidence: 0.8, Reason: "dup", Status: domain.ContradictionUnresolved,
		DetectedAt: time.Now().UnixMilli(),
	}
	if err := s.PutContradiction(ctx, c); err != nil {
		t.Fatal(err)
	}

	err := s.ApplyMerge(ctx, winner.ID, []string{loser.ID}, domain.MergedFields{
		AccessCount: 5, Tags: []string{"ui", "merged"}, Confidence: 0.9, UpdatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("ApplyMerge: %v", err)
	}

	if _, err := s.Get(ctx, loser.ID); domain.ErrorKindOf(err) != domain.KindNotFound {
		t.Errorf("expected loser deleted, got %v", err)
	}
	got, err := s.Get(ctx, winner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessCount != 5 || got.Confidence != 0.9 {
		t.Errorf("winner not merged correctly: %+v", got)
	}

	cs, err := s.ListContradictions(ctx, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 0 {
		t.Errorf("expected cascade-deleted contradiction, got %d", len(cs))
	}
}

func TestResolveContradictionKeepFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m1 := testMemory(newID())
	m2 := testMemory(newID())
	if err := s.Put(ctx, m1); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, m2); err != nil {
		t.Fatal(err)
	}
	c := domain.Contradiction{
		ID: newID(), Memory1ID: m1.ID, Memory2ID: m2.ID, Entity: "tabs",
		Confidence: 0.9, Reason: "negation", Status: domain.ContradictionUnresolved,
		DetectedAt: time.Now().UnixMilli(),
	}
	if err := s.PutContradiction(ctx, c); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UnixMilli()
	if err := s.ResolveContradiction(ctx, c.ID, domain.ResolutionKeepFirst, now); err != nil {
		t.Fatalf("ResolveContradiction: %v", err)
	}

	if _, err := s.Get(ctx, m2.ID); domain.ErrorKindOf(err) != domain.KindNotFound {
		t.Errorf("expected loser m2 deleted, got %v", err)
	}
	if _, err := s.Get(ctx, m1.ID); err != nil {
		t.Errorf("winner m1 should survive: %v", err)
	}

	resolved, err := s.ListContradictions(ctx, domain.ContradictionResolved, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 1 || resolved[0].ResolutionAction == nil || *resolved[0].ResolutionAction != domain.ResolutionKeepFirst {
		t.Fatalf("resolved = %+v", resolved)
	}
}

func TestDeleteStaleRespectsPredicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	stale := testMemory(newID())
	stale.Confidence = 0.1
	stale.CreatedAt = now - 200*86400000
	stale.AccessCount = 0
	if err := s.Put(ctx, stale); err != nil {
		t.Fatal(err)
	}

	fresh := testMemory(newID())
	fresh.Confidence = 0.1
	fresh.CreatedAt = now
	if err := s.Put(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteStale(ctx, 0.15, 90, now)
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d, want 1", n)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh memory should survive: %v", err)
	}
}

func TestStatusCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, testMemory(newID())); err != nil {
		t.Fatal(err)
	}
	noEmbed := testMemory(newID())
	noEmbed.Embedding = nil
	if err := s.Put(ctx, noEmbed); err != nil {
		t.Fatal(err)
	}

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Total != 2 {
		t.Errorf("Total = %d, want 2", st.Total)
	}
	if st.WithEmbeddings != 1 {
		t.Errorf("WithEmbeddings = %d, want 1", st.WithEmbeddings)
	}
	if st.ByCategory[domain.CategoryPreference] != 2 {
		t.Errorf("ByCategory[preference] = %d, want 2", st.ByCategory[domain.CategoryPreference])
	}
}
