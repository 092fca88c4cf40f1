package main

import (
	"net/http"

	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

type healthHandler struct {
	store *store.Store
	index *vectorindex.Index
}

// GET /api/v1/health
func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"status": "ok"}
	status := http.StatusOK

	if err := h.store.DB().PingContext(r.Context()); err != nil {
		components["database"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		components["database"] = "ok"
	}

	if _, err := h.index.IsEmpty(r.Context()); err != nil {
		components["vector_index"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		components["vector_index"] = "ok"
	}

	if status != http.StatusOK {
		components["status"] = "degraded"
	}
	writeJSON(w, status, components)
}
