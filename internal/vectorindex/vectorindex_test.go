//go:build cgo

package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/finrag/finrag/internal/store"
)

func newTestIndex(t *testing.T) (*Index, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func mustCreateDocument(t *testing.T, s *store.Store, id string) {
	t.Helper()
	if err := s.CreateDocument(context.Background(), store.Document{
		ID: id, Filename: id + ".txt", UploaderUserID: "u1", UploaderUsername: "alice",
		FileType: "txt", ChunkCount: 1, FileSizeBytes: 10,
	}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
}

func TestIsEmptyInitiallyTrue(t *testing.T) {
	idx, _ := newTestIndex(t)
	empty, err := idx.IsEmpty(context.Background())
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("expected empty index")
	}
}

func TestUpsertInvalidatesIsEmpty(t *testing.T) {
	idx, s := newTestIndex(t)
	ctx := context.Background()
	mustCreateDocument(t, s, "doc1")

	if _, err := idx.IsEmpty(ctx); err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}

	err := idx.Upsert(ctx, []Chunk{
		{ChunkID: "c1", DocumentID: "doc1", Index: 0, Content: "hello", Embedding: []float32{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	empty, err := idx.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if empty {
		t.Error("expected non-empty index after upsert")
	}
}

func TestSearchOrdersByScoreThenChunkID(t *testing.T) {
	idx, s := newTestIndex(t)
	ctx := context.Background()
	mustCreateDocument(t, s, "doc1")

	err := idx.Upsert(ctx, []Chunk{
		{ChunkID: "b", DocumentID: "doc1", Index: 0, Content: "b", Embedding: []float32{1, 0, 0, 0}},
		{ChunkID: "a", DocumentID: "doc1", Index: 1, Content: "a", Embedding: []float32{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits := idx.Search(ctx, []float32{1, 0, 0, 0}, 10, 0)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ChunkID != "a" || hits[1].ChunkID != "b" {
		t.Errorf("tie-break order = [%s, %s], want [a, b]", hits[0].ChunkID, hits[1].ChunkID)
	}
}

func TestDeleteByDocumentRemovesChunksAndInvalidatesCache(t *testing.T) {
	idx, s := newTestIndex(t)
	ctx := context.Background()
	mustCreateDocument(t, s, "doc1")

	if err := idx.Upsert(ctx, []Chunk{
		{ChunkID: "c1", DocumentID: "doc1", Index: 0, Content: "hello", Embedding: []float32{1, 0, 0, 0}},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := idx.IsEmpty(ctx); err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}

	if err := idx.DeleteByDocument(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}

	empty, err := idx.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("expected empty index after DeleteByDocument")
	}

	hits := idx.Search(ctx, []float32{1, 0, 0, 0}, 10, 0)
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %d", len(hits))
	}
}

func TestStats(t *testing.T) {
	idx, s := newTestIndex(t)
	ctx := context.Background()
	mustCreateDocument(t, s, "doc1")

	if err := idx.Upsert(ctx, []Chunk{
		{ChunkID: "c1", DocumentID: "doc1", Index: 0, Content: "hello", Embedding: []float32{1, 0, 0, 0}},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	st, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.UniqueDocumentCount != 1 {
		t.Errorf("UniqueDocumentCount = %d, want 1", st.UniqueDocumentCount)
	}
	if st.PerTypeCounts["txt"] != 1 {
		t.Errorf("PerTypeCounts[txt] = %d, want 1", st.PerTypeCounts["txt"])
	}
}
