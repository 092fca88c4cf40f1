// Package vectorindex wraps the store's sqlite-vec-backed chunk table
// behind the C3 contract (spec.md §4.2): Upsert, Search, DeleteByDocument,
// Stats, IsEmpty. It owns the one extra piece of behavior the store
// layer doesn't: the "is-empty" hint, cached for up to 30 seconds so a
// hot RAG query path doesn't pay a COUNT(*) on every call, and
// invalidated immediately on any write.
package vectorindex

import (
	"context"
	"sync"
	"time"

	"github.com/finrag/finrag/internal/store"
)

const isEmptyTTL = 30 * time.Second

// Chunk is a chunk batch member supplied to Upsert.
type Chunk = store.Chunk

// ScoredChunk is a Search hit.
type ScoredChunk = store.ScoredChunk

// Stats summarizes the indexed corpus for the admin analytics surface.
type Stats struct {
	TotalChunks         int
	UniqueDocumentCount int
	PerTypeCounts       map[string]int
	RecentUploads       map[string]int
}

// Index is the vector index abstraction (C3). Construct with New.
type Index struct {
	store *store.Store

	mu         sync.RWMutex
	emptyKnown bool
	empty      bool
	checkedAt  time.Time
}

// New wraps a store behind the vector index contract.
func New(s *store.Store) *Index {
	return &Index{store: s}
}

// Upsert atomically adds a chunk batch and invalidates the is-empty
// cache. "Upsert" here is append-only: chunk ids are generated fresh
// by the caller (the ingest pipeline), so there is nothing to replace.
func (i *Index) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := i.store.InsertChunks(ctx, chunks); err != nil {
		return err
	}
	i.invalidate()
	return nil
}

// Search runs a similarity search, returning at most k hits scoring at
// least minScore, ordered by score descending with chunk id breaking
// ties. Per spec.md §4.2, Search failures never propagate as errors;
// the RAG engine treats a failed search identically to no hits, so a
// transport-level error here degrades to an empty result rather than
// surfacing to the caller.
func (i *Index) Search(ctx context.Context, queryEmbedding []float32, k int, minScore float64) []ScoredChunk {
	hits, err := i.store.Search(ctx, queryEmbedding, k, minScore)
	if err != nil {
		return nil
	}
	return hits
}

// DeleteByDocument removes every chunk belonging to document_id and
// invalidates the is-empty cache. Used both for explicit document
// deletion and as ingest rollback on a failed batch.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := i.store.DeleteChunksByDocument(ctx, documentID); err != nil {
		return err
	}
	i.invalidate()
	return nil
}

// Stats reports corpus-wide totals for the admin analytics view.
func (i *Index) Stats(ctx context.Context) (Stats, error) {
	docStats, err := i.store.DocumentStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	perType, err := i.store.DocumentTypeCounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	recent, err := i.store.RecentUploadHistogram(ctx, 30)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalChunks:         docStats.TotalChunks,
		UniqueDocumentCount: docStats.TotalDocuments,
		PerTypeCounts:       perType,
		RecentUploads:       recent,
	}, nil
}

// IsEmpty reports whether the index currently holds zero chunks,
// serving a cached answer for up to 30 seconds. A single writer
// (Upsert/DeleteByDocument) invalidates the cache immediately; many
// concurrent readers share one underlying refresh when the cache is
// stale, via the read-then-upgrade lock pattern below.
func (i *Index) IsEmpty(ctx context.Context) (bool, error) {
	i.mu.RLock()
	if i.emptyKnown && time.Since(i.checkedAt) < isEmptyTTL {
		empty := i.empty
		i.mu.RUnlock()
		return empty, nil
	}
	i.mu.RUnlock()

	i.mu.Lock()
	defer i.mu.Unlock()
	// Re-check: another goroutine may have refreshed while we waited for
	// the write lock.
	if i.emptyKnown && time.Since(i.checkedAt) < isEmptyTTL {
		return i.empty, nil
	}

	n, err := i.store.ChunkCount(ctx)
	if err != nil {
		return false, err
	}
	i.empty = n == 0
	i.emptyKnown = true
	i.checkedAt = time.Now()
	return i.empty, nil
}

func (i *Index) invalidate() {
	i.mu.Lock()
	i.emptyKnown = false
	i.mu.Unlock()
}
