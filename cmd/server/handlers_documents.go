package main

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/ingest"
	"github.com/finrag/finrag/internal/settings"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

type documentHandler struct {
	ingestor *ingest.Ingestor
	store    *store.Store
	index    *vectorindex.Index
	settings *settings.Cache
}

var supportedFileTypes = map[string]bool{"pdf": true, "docx": true, "txt": true}

// POST /api/v1/documents/upload
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	uploaderID, uploaderUsername := "unknown", "unknown"
	if user := optionalUser(r); user != nil {
		uploaderID, uploaderUsername = user.ID, user.Username
	}

	snap := h.settings.Snapshot()
	maxBytes := snap.Int("max_file_size_mb") * 1_000_000
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20) // allow multipart overhead beyond the file itself

	if err := r.ParseMultipartForm(maxBytes + 1<<20); err != nil {
		writeError(w, r, apperr.New(apperr.PayloadTooLarge, "upload exceeds the maximum file size"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(w, r, "a multipart 'file' field is required")
		return
	}
	defer file.Close()

	ext := fileExt(header.Filename)
	if !supportedFileTypes[ext] {
		writeValidationError(w, r, fmt.Sprintf("unsupported file type %q", ext))
		return
	}
	if header.Size > maxBytes {
		writeError(w, r, apperr.New(apperr.PayloadTooLarge, "upload exceeds the maximum file size"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("reading uploaded file: %w", err))
		return
	}

	ctx, cancel := withTimeout(r, 5*time.Minute)
	defer cancel()

	res, err := h.ingestor.Ingest(ctx, ingest.Request{
		Filename:         header.Filename,
		FileType:         ext,
		Data:             data,
		UploaderUserID:   uploaderID,
		UploaderUsername: uploaderUsername,
		ChunkSize:        int(snap.Int("chunk_size")),
		ChunkOverlap:     int(snap.Int("chunk_overlap")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id":    res.DocumentID,
		"filename":       header.Filename,
		"chunks_created": res.ChunksCreated,
		"upload_date":    time.Now().UTC().Format(time.RFC3339),
	})
}

func fileExt(filename string) string {
	for i := len(filename) - 1; i >= 0 && filename[i] != '/'; i-- {
		if filename[i] == '.' {
			ext := filename[i+1:]
			lower := make([]byte, len(ext))
			for j := 0; j < len(ext); j++ {
				c := ext[j]
				if c >= 'A' && c <= 'Z' {
					c += 'a' - 'A'
				}
				lower[j] = c
			}
			return string(lower)
		}
	}
	return ""
}

// GET /api/v1/documents
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	docs, total, err := h.store.ListDocuments(r.Context(), "", offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

// DELETE /api/v1/documents/{id}
func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeValidationError(w, r, "document id is required")
		return
	}

	doc, err := h.store.GetDocument(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, r, apperr.NotFoundf("document not found"))
			return
		}
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.index.DeleteByDocument(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chunks_deleted": doc.ChunkCount})
}

// GET /api/v1/documents/stats
func (h *documentHandler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.DocumentStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// parsePagination reads offset/limit query parameters, clamping limit
// to the 10-100 page-size bound (spec.md §4.7/§6).
func parsePagination(w http.ResponseWriter, r *http.Request) (offset, limit int, ok bool) {
	q := r.URL.Query()
	offset = 0
	limit = 20

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeValidationError(w, r, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 10 || n > 100 {
			writeValidationError(w, r, "limit must be between 10 and 100")
			return 0, 0, false
		}
		limit = n
	}
	return offset, limit, true
}
