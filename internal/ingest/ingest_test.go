//go:build cgo

package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/finrag/finrag/internal/llm"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

const testDim = 4

type fakeEmbedder struct {
	dim     int
	failAt  int // batch index (0-based) to fail on; -1 means never
	calls   int
}

func (f *fakeEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	defer func() { f.calls++ }()
	if f.failAt >= 0 && f.calls == f.failAt {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = 1
	}
	return out, nil
}

func newTestIngestor(t *testing.T, embedder llm.Provider) (*Ingestor, *store.Store, *vectorindex.Index) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, testDim)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	idx := vectorindex.New(s)
	return New(s, idx, embedder, nil), s, idx
}

func TestIngestSmallDocument(t *testing.T) {
	ig, _, idx := newTestIngestor(t, &fakeEmbedder{dim: testDim, failAt: -1})
	ctx := context.Background()

	res, err := ig.Ingest(ctx, Request{
		Filename:         "q4.txt",
		FileType:         "txt",
		Data:             []byte("Q4 revenue was $2.5M, up 15% from Q3's $2.17M."),
		UploaderUserID:   "u1",
		UploaderUsername: "alice",
		ChunkSize:        800,
		ChunkOverlap:     100,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ChunksCreated != 1 {
		t.Errorf("ChunksCreated = %d, want 1", res.ChunksCreated)
	}

	empty, err := idx.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if empty {
		t.Error("expected non-empty index after ingest")
	}
}

func TestIngestUnsupportedFileType(t *testing.T) {
	ig, _, _ := newTestIngestor(t, &fakeEmbedder{dim: testDim, failAt: -1})
	_, err := ig.Ingest(context.Background(), Request{
		Filename: "x.exe", FileType: "exe", Data: []byte("binary"),
		ChunkSize: 800, ChunkOverlap: 100,
	})
	if err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}

func TestIngestEmptyTextRejected(t *testing.T) {
	ig, _, _ := newTestIngestor(t, &fakeEmbedder{dim: testDim, failAt: -1})
	_, err := ig.Ingest(context.Background(), Request{
		Filename: "empty.txt", FileType: "txt", Data: []byte("   \n\n  "),
		ChunkSize: 800, ChunkOverlap: 100,
	})
	if err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestIngestRollsBackOnEmbedFailure(t *testing.T) {
	ig, s, idx := newTestIngestor(t, &fakeEmbedder{dim: testDim, failAt: 0})
	ctx := context.Background()

	_, err := ig.Ingest(ctx, Request{
		Filename: "big.txt", FileType: "txt",
		Data:      []byte("some content that will fail embedding"),
		ChunkSize: 800, ChunkOverlap: 100,
	})
	if err == nil {
		t.Fatal("expected embedding failure to propagate")
	}

	empty, err := idx.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("expected no chunks persisted after embed failure")
	}

	_, total, err := s.ListDocuments(ctx, "", 0, 10)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0 documents after rollback, got %d", total)
	}
}

func TestDeleteRemovesDocumentAndChunks(t *testing.T) {
	ig, s, idx := newTestIngestor(t, &fakeEmbedder{dim: testDim, failAt: -1})
	ctx := context.Background()

	res, err := ig.Ingest(ctx, Request{
		Filename: "a.txt", FileType: "txt", Data: []byte("hello world"),
		UploaderUserID: "u1", UploaderUsername: "alice", ChunkSize: 800, ChunkOverlap: 100,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := ig.Delete(ctx, res.DocumentID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := s.GetDocument(ctx, res.DocumentID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	empty, err := idx.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("expected empty index after delete")
	}
}
