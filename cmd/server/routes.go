package main

import (
	"net/http"
	"strings"

	"github.com/finrag/finrag/internal/admin"
	"github.com/finrag/finrag/internal/auth"
	"github.com/finrag/finrag/internal/ingest"
	"github.com/finrag/finrag/internal/metrics"
	"github.com/finrag/finrag/internal/rag"
	"github.com/finrag/finrag/internal/session"
	"github.com/finrag/finrag/internal/settings"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

// routeDeps collects every collaborator a handler needs, assembled once
// in main and threaded through registerRoutes.
type routeDeps struct {
	auth     *auth.Service
	settings *settings.Cache
	store    *store.Store
	index    *vectorindex.Index
	ingestor *ingest.Ingestor
	engine   *rag.Engine
	sessions *session.Manager
	admin    *admin.Service
}

// registerRoutes wires every handler to its route per the external
// interface table (spec.md §6), instrumenting each with the Prometheus
// and durable metrics recorder.
func registerRoutes(mux *http.ServeMux, m *metrics.Metrics, rec *metrics.Recorder, deps routeDeps) {
	ah := &authHandler{auth: deps.auth, settings: deps.settings}
	dh := &documentHandler{ingestor: deps.ingestor, store: deps.store, index: deps.index, settings: deps.settings}
	ch := &chatHandler{engine: deps.engine, sessions: deps.sessions}
	hh := &healthHandler{store: deps.store, index: deps.index}
	adh := &adminHandler{admin: deps.admin}

	route := func(pattern string, fn http.HandlerFunc) {
		_, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(pattern, instrument(path, m, rec, fn))
	}

	// Public.
	route("POST /api/v1/auth/register", ah.register)
	route("POST /api/v1/auth/login", ah.login)
	route("POST /api/v1/auth/forgot-password", ah.forgotPassword)
	route("POST /api/v1/auth/reset-password", ah.resetPassword)
	route("GET /api/v1/health", hh.health)
	route("POST /api/v1/documents/upload", dh.upload)
	route("GET /api/v1/documents", dh.list)
	route("DELETE /api/v1/documents/{id}", dh.delete)
	route("GET /api/v1/documents/stats", dh.stats)

	// Authenticated.
	route("GET /api/v1/auth/me", ah.me)
	route("POST /api/v1/auth/change-password", ah.changePassword)
	route("POST /api/v1/chat", ch.chat)

	// Admin: users.
	route("GET /api/v1/admin/users", adh.listUsers)
	route("GET /api/v1/admin/users/{id}", adh.getUser)
	route("POST /api/v1/admin/users/{id}/status", adh.setUserStatus)
	route("POST /api/v1/admin/users/{id}/force-reset", adh.forceResetPassword)
	route("GET /api/v1/admin/users/{id}/activity", adh.userActivity)

	// Admin: documents.
	route("GET /api/v1/admin/documents", adh.listDocuments)
	route("DELETE /api/v1/admin/documents/{id}", adh.deleteDocument)
	route("GET /api/v1/admin/documents/stats", adh.documentStats)

	// Admin: system.
	route("GET /api/v1/admin/system/health", adh.health)
	route("GET /api/v1/admin/system/storage", adh.storage)
	route("GET /api/v1/admin/system/api-usage", adh.apiUsage)
	route("GET /api/v1/admin/system/metrics", adh.metrics)
	route("GET /api/v1/admin/system/logs", adh.logs)

	// Admin: analytics.
	route("GET /api/v1/admin/analytics/users", adh.usersAnalytics)
	route("GET /api/v1/admin/analytics/sessions", adh.sessionsAnalytics)
	route("GET /api/v1/admin/analytics/documents", adh.documentsAnalytics)

	// Admin: config.
	route("GET /api/v1/admin/config", adh.listConfig)
	route("GET /api/v1/admin/config/{name}", adh.getConfig)
	route("PUT /api/v1/admin/config/{name}", adh.updateConfig)
}
