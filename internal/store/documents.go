package store

import (
	"context"
	"database/sql"
	"errors"
)

// Document mirrors the documents table.
type Document struct {
	ID               string
	Filename         string
	UploaderUserID   string
	UploaderUsername string
	UploadTime       sql.NullTime
	FileType         string
	ChunkCount       int
	FileSizeBytes    int64
}

const documentColumns = `id, filename, uploader_user_id, uploader_username, upload_time,
	file_type, chunk_count, file_size_bytes`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Filename, &d.UploaderUserID, &d.UploaderUsername, &d.UploadTime,
		&d.FileType, &d.ChunkCount, &d.FileSizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts document metadata.
func (s *Store) CreateDocument(ctx context.Context, d Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, uploader_user_id, uploader_username, file_type, chunk_count, file_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Filename, d.UploaderUserID, d.UploaderUsername, d.FileType, d.ChunkCount, d.FileSizeBytes)
	return err
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns a page of documents, newest first, optionally
// filtered to a single uploader (empty string means all uploaders).
func (s *Store) ListDocuments(ctx context.Context, uploaderUserID string, offset, limit int) ([]Document, int, error) {
	var total int
	var countRow *sql.Row
	if uploaderUserID != "" {
		countRow = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE uploader_user_id = ?`, uploaderUserID)
	} else {
		countRow = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`)
	}
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, err
	}

	var rows *sql.Rows
	var err error
	if uploaderUserID != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+documentColumns+` FROM documents WHERE uploader_user_id = ?
			ORDER BY upload_time DESC LIMIT ? OFFSET ?`, uploaderUserID, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+documentColumns+` FROM documents ORDER BY upload_time DESC LIMIT ? OFFSET ?`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *d)
	}
	return docs, total, rows.Err()
}

// DeleteDocument removes a document and, via ON DELETE CASCADE, its chunks.
// Callers are responsible for also removing the matching vec0 rows (see
// vectorindex.DeleteByDocument) since sqlite-vec virtual tables don't honor
// foreign keys.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.DeleteDocumentTx(ctx, s.db, id)
}

// DeleteDocumentTx is DeleteDocument run against an in-flight
// transaction, so the admin delete effect can commit atomically with
// its audit row.
func (s *Store) DeleteDocumentTx(ctx context.Context, ex execer, id string) error {
	res, err := ex.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DocumentStats summarizes the document corpus for the admin analytics view.
type DocumentStats struct {
	TotalDocuments int
	TotalChunks    int
	TotalBytes     int64
}

// Stats computes corpus-wide totals.
func (s *Store) DocumentStats(ctx context.Context) (DocumentStats, error) {
	var st DocumentStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), COALESCE(SUM(file_size_bytes), 0)
		FROM documents
	`).Scan(&st.TotalDocuments, &st.TotalChunks, &st.TotalBytes)
	return st, err
}

// DocumentTypeCounts returns the number of documents per file_type.
func (s *Store) DocumentTypeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_type, COUNT(*) FROM documents GROUP BY file_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var fileType string
		var n int
		if err := rows.Scan(&fileType, &n); err != nil {
			return nil, err
		}
		counts[fileType] = n
	}
	return counts, rows.Err()
}

// RecentUploadHistogram buckets uploads in the last n days by calendar
// date (YYYY-MM-DD, local to the stored timestamp), for the admin
// analytics view and the vector index's Stats summary.
func (s *Store) RecentUploadHistogram(ctx context.Context, days int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(upload_time), COUNT(*)
		FROM documents
		WHERE upload_time >= datetime('now', printf('-%d days', ?))
		GROUP BY date(upload_time)
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hist := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		hist[day] = n
	}
	return hist, rows.Err()
}
