package admin

import (
	"context"
	"database/sql"

	"github.com/finrag/finrag/internal/activity"
	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/store"
)

// ListDocuments returns a page of documents, newest first, optionally
// scoped to a single uploader.
func (s *Service) ListDocuments(ctx context.Context, uploaderUserID string, offset, limit int) ([]store.Document, Page, error) {
	docs, total, err := s.store.ListDocuments(ctx, uploaderUserID, offset, limit)
	if err != nil {
		return nil, Page{}, err
	}
	return docs, Page{Offset: offset, Limit: limit, Total: total}, nil
}

// DeleteResult reports what a document deletion removed.
type DeleteResult struct {
	ChunksDeleted int
}

// DeleteDocument removes a document's metadata row and its vector-index
// chunks, auditing the metadata deletion atomically with the log entry.
// The vector-index side effect happens outside that transaction since
// sqlite-vec's vec0 virtual tables are not transactional participants
// (see vectorindex.DeleteByDocument); it runs after the commit, mirroring
// ingest.Ingestor's compensating-delete-on-failure pattern in reverse.
func (s *Service) DeleteDocument(ctx context.Context, actor Actor, documentID string) (DeleteResult, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if err == store.ErrNotFound {
			return DeleteResult{}, apperr.NotFoundf("document not found")
		}
		return DeleteResult{}, err
	}

	err = s.activity.WithEffect(ctx, activity.Entry{
		AdminID: actor.ID, AdminUsername: actor.Username, Action: "delete_document",
		ResourceType: "document", ResourceID: documentID,
		Details:    map[string]any{"filename": doc.Filename, "chunk_count": doc.ChunkCount},
		ClientAddr: actor.ClientAddr,
	}, func(tx *sql.Tx) error {
		return s.store.DeleteDocumentTx(ctx, tx, documentID)
	})
	if err != nil {
		return DeleteResult{}, err
	}

	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{ChunksDeleted: doc.ChunkCount}, nil
}

// DocumentStats reports corpus-wide totals for the admin documents view.
func (s *Service) DocumentStats(ctx context.Context) (store.DocumentStats, error) {
	return s.store.DocumentStats(ctx)
}
