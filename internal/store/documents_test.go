//go:build cgo

package store

import (
	"context"
	"errors"
	"testing"
)

func sampleDocument(id string) Document {
	return Document{
		ID:               id,
		Filename:         "report.pdf",
		UploaderUserID:   "u1",
		UploaderUsername: "alice",
		FileType:         "pdf",
		ChunkCount:       3,
		FileSizeBytes:    1024,
	}
}

func TestCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDocument("doc_1")
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc_1")
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Filename != "report.pdf" {
		t.Errorf("filename: got %q", got.Filename)
	}
	if got.ChunkCount != 3 {
		t.Errorf("chunk count: got %d, want 3", got.ChunkCount)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDocument(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDocumentsFilteredByUploader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := sampleDocument("doc_1")
	d2 := sampleDocument("doc_2")
	d2.UploaderUserID = "u2"
	d2.UploaderUsername = "bob"
	if err := s.CreateDocument(ctx, d1); err != nil {
		t.Fatalf("create d1: %v", err)
	}
	if err := s.CreateDocument(ctx, d2); err != nil {
		t.Fatalf("create d2: %v", err)
	}

	all, total, err := s.ListDocuments(ctx, "", 0, 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected 2 documents, got total=%d len=%d", total, len(all))
	}

	filtered, total2, err := s.ListDocuments(ctx, "u1", 0, 10)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if total2 != 1 || len(filtered) != 1 {
		t.Fatalf("expected 1 document for u1, got total=%d len=%d", total2, len(filtered))
	}
	if filtered[0].ID != "doc_1" {
		t.Errorf("expected doc_1, got %q", filtered[0].ID)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, sampleDocument("doc_1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := s.GetDocument(ctx, "doc_1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.DeleteDocument(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateDocument(ctx, sampleDocument("doc_1")); err != nil {
		t.Fatalf("create d1: %v", err)
	}
	d2 := sampleDocument("doc_2")
	d2.ChunkCount = 5
	d2.FileSizeBytes = 2048
	if err := s.CreateDocument(ctx, d2); err != nil {
		t.Fatalf("create d2: %v", err)
	}

	stats, err := s.DocumentStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("total documents: got %d, want 2", stats.TotalDocuments)
	}
	if stats.TotalChunks != 8 {
		t.Errorf("total chunks: got %d, want 8", stats.TotalChunks)
	}
	if stats.TotalBytes != 3072 {
		t.Errorf("total bytes: got %d, want 3072", stats.TotalBytes)
	}
}
