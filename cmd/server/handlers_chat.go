package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finrag/finrag/internal/rag"
	"github.com/finrag/finrag/internal/session"
)

type chatHandler struct {
	engine   *rag.Engine
	sessions *session.Manager
}

const (
	minQueryLen = 1
	maxQueryLen = 2000
)

// sourceView is the chat response schema's source shape (§6); Source
// already truncates chunk_text to 200 characters.
type sourceView struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"score"`
}

// POST /api/v1/chat
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	if len(req.Query) < minQueryLen || len(req.Query) > maxQueryLen {
		writeValidationError(w, r, "query must be between 1 and 2000 characters")
		return
	}

	ctx, cancel := withTimeout(r, 2*time.Minute)
	defer cancel()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()
		if err := h.sessions.Create(ctx, sessionID, user.ID); err != nil {
			writeError(w, r, err)
			return
		}
	} else if err := h.sessions.EnsureOwned(ctx, sessionID, user.ID); err != nil {
		writeError(w, r, err)
		return
	}

	answer, err := h.engine.Query(ctx, sessionID, user.ID, req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sources := make([]sourceView, len(answer.Sources))
	for i, s := range answer.Sources {
		sources[i] = sourceView{
			DocumentID: s.DocumentID,
			ChunkID:    s.ChunkID,
			ChunkText:  s.Text,
			Score:      s.RelevanceScore,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":   answer.Response,
		"sources":    sources,
		"session_id": answer.SessionID,
	})
}
