package store

import (
	"context"
	"database/sql"
	"encoding/json"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Chunk is a persisted chunk row paired with its embedding, as written by
// the ingest pipeline (C7).
type Chunk struct {
	ChunkID    string
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]any
	Embedding  []float32
}

// ScoredChunk is a chunk returned from a similarity search, carrying the
// unrounded cosine similarity score.
type ScoredChunk struct {
	ChunkID    string
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]any
	Score      float64
}

// InsertChunks writes chunk rows and their embeddings in one transaction:
// a chunk row in `chunks`, mirrored by a vec0 row in `vec_chunks` keyed on
// the same internal rowid, so a failure midway leaves neither half behind.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range chunks {
			meta, err := json.Marshal(c.Metadata)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (chunk_id, document_id, chunk_index, content, metadata)
				VALUES (?, ?, ?, ?, ?)
			`, c.ChunkID, c.DocumentID, c.Index, c.Content, string(meta))
			if err != nil {
				return err
			}
			rowID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			vec, err := sqlite_vec.SerializeFloat32(c.Embedding)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)
			`, rowID, vec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search runs a k-nearest-neighbor cosine similarity search restricted to
// rows whose chunk has the given document scope (nil means the whole
// corpus), returning up to k results with score >= minScore, ordered by
// score descending and chunk_id ascending on ties.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, k int, minScore float64) ([]ScoredChunk, error) {
	vec, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, err
	}

	// vec0 returns cosine distance; similarity = 1 - distance. Over-fetch a
	// generous multiple of k since the minScore filter is applied after the
	// kNN search runs, then trim and re-sort by (score desc, chunk_id asc)
	// to make ties deterministic.
	overFetch := k * 4
	if overFetch < k {
		overFetch = k
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.document_id, c.chunk_index, c.content, c.metadata, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, vec, overFetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var sc ScoredChunk
		var metaRaw string
		var distance float64
		if err := rows.Scan(&sc.ChunkID, &sc.DocumentID, &sc.Index, &sc.Content, &metaRaw, &distance); err != nil {
			return nil, err
		}
		sc.Score = 1 - distance
		if sc.Score < minScore {
			continue
		}
		if metaRaw != "" && metaRaw != "null" {
			_ = json.Unmarshal([]byte(metaRaw), &sc.Metadata)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortScoredChunks(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func sortScoredChunks(cs []ScoredChunk) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0; j-- {
			if less(cs[j], cs[j-1]) {
				cs[j], cs[j-1] = cs[j-1], cs[j]
			} else {
				break
			}
		}
	}
}

func less(a, b ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ChunkID < b.ChunkID
}

// DeleteChunksByDocument removes both the chunk rows and their vec0
// counterparts for a document. Called as part of document deletion and as
// rollback when ingest fails partway through.
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, documentID)
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE chunk_id = ?`, id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
		return err
	})
}

// ChunkCount returns the total number of indexed chunks, used by the
// vector index's IsEmpty check.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}
