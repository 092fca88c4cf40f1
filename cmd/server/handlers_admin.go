package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/finrag/finrag/internal/admin"
	"github.com/finrag/finrag/internal/auth"
)

type adminHandler struct {
	admin *admin.Service
}

// actorOf builds the audit actor from the verified admin caller and the
// request's remote address, for every admin mutation's activity entry.
func actorOf(user *auth.PublicUser, r *http.Request) admin.Actor {
	return admin.Actor{ID: user.ID, Username: user.Username, ClientAddr: r.RemoteAddr}
}

// --- users ---

// GET /api/v1/admin/users
func (h *adminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	offset, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}
	views, page, err := h.admin.ListUsers(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views, "total": page.Total, "offset": offset, "limit": limit})
}

// GET /api/v1/admin/users/{id}
func (h *adminHandler) getUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	view, err := h.admin.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/v1/admin/users/{id}/status
func (h *adminHandler) setUserStatus(w http.ResponseWriter, r *http.Request) {
	admin_, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	view, err := h.admin.SetUserActive(r.Context(), actorOf(admin_, r), r.PathValue("id"), req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/v1/admin/users/{id}/force-reset
func (h *adminHandler) forceResetPassword(w http.ResponseWriter, r *http.Request) {
	admin_, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	res, err := h.admin.ForceResetPassword(r.Context(), actorOf(admin_, r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"temporary_password": res.TemporaryPassword})
}

// GET /api/v1/admin/users/{id}/activity
func (h *adminHandler) userActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	offset, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}
	entries, page, err := h.admin.UserActivity(r.Context(), r.PathValue("id"), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries, "total": page.Total, "offset": offset, "limit": limit})
}

// --- documents ---

// GET /api/v1/admin/documents
func (h *adminHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	offset, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}
	docs, page, err := h.admin.ListDocuments(r.Context(), r.URL.Query().Get("uploader_id"), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": page.Total, "offset": offset, "limit": limit})
}

// DELETE /api/v1/admin/documents/{id}
func (h *adminHandler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	admin_, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	res, err := h.admin.DeleteDocument(r.Context(), actorOf(admin_, r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chunks_deleted": res.ChunksDeleted})
}

// GET /api/v1/admin/documents/stats
func (h *adminHandler) documentStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	st, err := h.admin.DocumentStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- system ---

// GET /api/v1/admin/system/health
func (h *adminHandler) health(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	status := h.admin.Health(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// GET /api/v1/admin/system/storage
func (h *adminHandler) storage(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	st, err := h.admin.Storage(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/v1/admin/system/api-usage?hours=1..168
func (h *adminHandler) apiUsage(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	hours, ok := parseBoundedInt(w, r, "hours", 24, 1, 168)
	if !ok {
		return
	}
	usage, err := h.admin.APIUsage(r.Context(), hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// GET /api/v1/admin/system/metrics
func (h *adminHandler) metrics(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	m, err := h.admin.Metrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GET /api/v1/admin/system/logs?severity=&since=&until=
func (h *adminHandler) logs(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	offset, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}

	q := admin.LogsQuery{Severity: r.URL.Query().Get("severity")}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeValidationError(w, r, "since must be an RFC3339 timestamp")
			return
		}
		q.Since = &t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeValidationError(w, r, "until must be an RFC3339 timestamp")
			return
		}
		q.Until = &t
	}

	entries, page, err := h.admin.Logs(r.Context(), q, offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries, "total": page.Total, "offset": offset, "limit": limit})
}

// --- analytics ---

// GET /api/v1/admin/analytics/users?days=1..365
func (h *adminHandler) usersAnalytics(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	days, ok := parseBoundedInt(w, r, "days", 30, 1, 365)
	if !ok {
		return
	}
	ua, err := h.admin.Users(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ua)
}

// GET /api/v1/admin/analytics/sessions
func (h *adminHandler) sessionsAnalytics(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	st, err := h.admin.Sessions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /api/v1/admin/analytics/documents
func (h *adminHandler) documentsAnalytics(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	st, err := h.admin.Documents(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- config ---

// GET /api/v1/admin/config
func (h *adminHandler) listConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	settings, err := h.admin.ListConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// GET /api/v1/admin/config/{name}
func (h *adminHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	setting, err := h.admin.GetConfig(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// PUT /api/v1/admin/config/{name}
func (h *adminHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	admin_, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	setting, err := h.admin.UpdateConfig(r.Context(), actorOf(admin_, r), r.PathValue("name"), req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setting)
}

// parseBoundedInt reads an integer query parameter, defaulting and
// clamping it to [min, max].
func parseBoundedInt(w http.ResponseWriter, r *http.Request, name string, def, min, max int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		writeValidationError(w, r, name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return 0, false
	}
	return n, true
}
