//go:build cgo

package store

import (
	"context"
	"testing"
)

func TestInsertChunksAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, sampleDocument("doc_1")); err != nil {
		t.Fatalf("create document: %v", err)
	}

	chunks := []Chunk{
		{ChunkID: "doc_1_chunk_0", DocumentID: "doc_1", Index: 0, Content: "alpha content", Embedding: []float32{1, 0, 0, 0}},
		{ChunkID: "doc_1_chunk_1", DocumentID: "doc_1", Index: 1, Content: "beta content", Embedding: []float32{0, 1, 0, 0}},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "doc_1_chunk_0" {
		t.Errorf("expected nearest result to be doc_1_chunk_0, got %q", results[0].ChunkID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("expected first result score %f > second %f", results[0].Score, results[1].Score)
	}
}

func TestSearchMinScoreFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, sampleDocument("doc_1")); err != nil {
		t.Fatalf("create document: %v", err)
	}
	chunks := []Chunk{
		{ChunkID: "doc_1_chunk_0", DocumentID: "doc_1", Index: 0, Content: "a", Embedding: []float32{1, 0, 0, 0}},
		{ChunkID: "doc_1_chunk_1", DocumentID: "doc_1", Index: 1, Content: "b", Embedding: []float32{0, 1, 0, 0}},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	// Orthogonal vector has cosine similarity 0 to the query; a high min
	// score should exclude it while the matching vector survives.
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.Score < 0.5 {
			t.Errorf("result %q has score %f below min_score 0.5", r.ChunkID, r.Score)
		}
	}
	if len(results) != 1 || results[0].ChunkID != "doc_1_chunk_0" {
		t.Fatalf("expected only doc_1_chunk_0 to survive min_score filter, got %+v", results)
	}
}

func TestSearchTopK(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, sampleDocument("doc_1")); err != nil {
		t.Fatalf("create document: %v", err)
	}
	chunks := []Chunk{
		{ChunkID: "c0", DocumentID: "doc_1", Index: 0, Content: "c0", Embedding: []float32{1, 0, 0, 0}},
		{ChunkID: "c1", DocumentID: "doc_1", Index: 1, Content: "c1", Embedding: []float32{0, 1, 0, 0}},
		{ChunkID: "c2", DocumentID: "doc_1", Index: 2, Content: "c2", Embedding: []float32{0, 0, 1, 0}},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := s.Search(ctx, []float32{0, 0, 1, 0}, 1, 0)
	if err != nil {
		t.Fatalf("search k=1: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ChunkID != "c2" {
		t.Errorf("expected c2, got %q", results[0].ChunkID)
	}
}

func TestDeleteChunksByDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, sampleDocument("doc_1")); err != nil {
		t.Fatalf("create document: %v", err)
	}
	chunks := []Chunk{
		{ChunkID: "doc_1_chunk_0", DocumentID: "doc_1", Index: 0, Content: "a", Embedding: []float32{1, 0, 0, 0}},
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, err := s.ChunkCount(ctx)
	if err != nil {
		t.Fatalf("chunk count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 chunk, got %d", count)
	}

	if err := s.DeleteChunksByDocument(ctx, "doc_1"); err != nil {
		t.Fatalf("delete chunks: %v", err)
	}

	count, err = s.ChunkCount(ctx)
	if err != nil {
		t.Fatalf("chunk count after delete: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 chunks after delete, got %d", count)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 10, 0)
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 search results after delete, got %d", len(results))
	}
}
