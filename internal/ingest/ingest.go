// Package ingest orchestrates the document ingestion pipeline (C7):
// extract text, chunk it, embed the chunks in batches, upsert them
// into the vector index, and record document metadata — all as one
// logical unit. A failure at any stage after chunks have been written
// to the index rolls back that document's chunks before the error is
// returned, so no partial document is ever left queryable.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/chunker"
	"github.com/finrag/finrag/internal/extract"
	"github.com/finrag/finrag/internal/llm"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

// embedBatchSize bounds how many chunk texts are sent to the embedding
// provider per call, mirroring the batching shape of the teacher's
// embedChunks but without its per-text fallback: here a batch failure
// fails the whole ingest rather than tolerating partial loss.
const embedBatchSize = 32

// Request describes one upload to ingest.
type Request struct {
	Filename         string
	FileType         string
	Data             []byte
	UploaderUserID   string
	UploaderUsername string
	ChunkSize        int
	ChunkOverlap     int
}

// Result is returned on a successful ingest.
type Result struct {
	DocumentID    string
	ChunksCreated int
}

// Ingestor wires the extraction, chunking, embedding, and indexing
// stages together.
type Ingestor struct {
	store    *store.Store
	index    *vectorindex.Index
	embedder llm.Provider
	log      *slog.Logger
}

// New constructs an Ingestor.
func New(s *store.Store, idx *vectorindex.Index, embedder llm.Provider, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: s, index: idx, embedder: embedder, log: log}
}

// Ingest runs the full pipeline for req. On any failure, nothing about
// the document is left behind: if chunks were already upserted into
// the vector index by the time a later step fails, they are deleted
// before the error returns.
func (ig *Ingestor) Ingest(ctx context.Context, req Request) (*Result, error) {
	fileType := strings.ToLower(req.FileType)
	if !extract.IsSupported(fileType) {
		return nil, apperr.Validationf(fmt.Sprintf("unsupported file type: %s", req.FileType))
	}

	text, err := extract.Text(fileType, req.Data)
	if err != nil {
		return nil, apperr.Newf(apperr.Validation, "extracting document text", map[string]any{"error": err.Error()})
	}

	pieces := chunker.New(chunker.Config{ChunkSize: req.ChunkSize, Overlap: req.ChunkOverlap}).Split(text)
	if len(pieces) == 0 {
		return nil, apperr.Validationf("document contains no extractable text")
	}

	documentID := "doc_" + uuid.NewString()
	uploadTime := time.Now().UTC().Format(time.RFC3339)

	chunks := make([]vectorindex.Chunk, len(pieces))
	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p
		chunks[i] = vectorindex.Chunk{
			ChunkID:    "chunk_" + uuid.NewString(),
			DocumentID: documentID,
			Index:      i,
			Content:    p,
			Metadata: map[string]any{
				"document_id":       documentID,
				"chunk_index":       i,
				"filename":          req.Filename,
				"upload_time":       uploadTime,
				"file_type":         fileType,
				"file_size_bytes":   len(req.Data),
				"uploader_user_id":  req.UploaderUserID,
				"uploader_username": req.UploaderUsername,
			},
		}
	}

	embeddings, err := ig.embedBatches(ctx, texts)
	if err != nil {
		return nil, apperr.Newf(apperr.UpstreamFailure, "embedding document chunks", map[string]any{"error": err.Error()})
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := ig.index.Upsert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("upserting chunks: %w", err)
	}

	doc := store.Document{
		ID:               documentID,
		Filename:         req.Filename,
		UploaderUserID:   req.UploaderUserID,
		UploaderUsername: req.UploaderUsername,
		FileType:         fileType,
		ChunkCount:       len(chunks),
		FileSizeBytes:    int64(len(req.Data)),
	}
	if err := ig.store.CreateDocument(ctx, doc); err != nil {
		if delErr := ig.index.DeleteByDocument(ctx, documentID); delErr != nil {
			ig.log.Error("rollback after failed document insert also failed",
				slog.String("document_id", documentID), slog.String("error", delErr.Error()))
		}
		return nil, fmt.Errorf("recording document metadata: %w", err)
	}

	ig.log.Info("ingested document",
		slog.String("document_id", documentID), slog.String("filename", req.Filename), slog.Int("chunks", len(chunks)))
	return &Result{DocumentID: documentID, ChunksCreated: len(chunks)}, nil
}

// Delete removes a document's metadata and its chunks from the vector
// index together.
func (ig *Ingestor) Delete(ctx context.Context, documentID string) error {
	if err := ig.index.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	return ig.store.DeleteDocument(ctx, documentID)
}

// embedBatches embeds texts in fixed-size batches, preserving order.
// Any batch failure aborts the whole call: the ingestion contract
// forbids a partially embedded document.
func (ig *Ingestor) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := min(i+embedBatchSize, len(texts))
		batch, err := ig.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(batch), end-i)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
