package admin

import (
	"context"
	"database/sql"
	"time"

	"github.com/finrag/finrag/internal/store"
)

// ComponentStatus is one dependency's health, for the health endpoint's
// per-component breakdown.
type ComponentStatus struct {
	Status string // "ok" or "error"
	Detail string
}

// Health is the aggregate system health view: "ok" iff every component
// is "ok".
type Health struct {
	Status     string
	Components map[string]ComponentStatus
}

// Health pings every collaborator this service depends on directly.
func (s *Service) Health(ctx context.Context) Health {
	components := map[string]ComponentStatus{}

	if err := s.store.DB().PingContext(ctx); err != nil {
		components["database"] = ComponentStatus{Status: "error", Detail: err.Error()}
	} else {
		components["database"] = ComponentStatus{Status: "ok"}
	}

	if _, err := s.index.IsEmpty(ctx); err != nil {
		components["vector_index"] = ComponentStatus{Status: "error", Detail: err.Error()}
	} else {
		components["vector_index"] = ComponentStatus{Status: "ok"}
	}

	status := "ok"
	for _, c := range components {
		if c.Status != "ok" {
			status = "degraded"
			break
		}
	}
	return Health{Status: status, Components: components}
}

// StorageStats reports how much data the service holds, for the admin
// storage view.
type StorageStats struct {
	Documents store.DocumentStats
	Chunks    int
}

// Storage summarizes corpus size for the admin storage view.
func (s *Service) Storage(ctx context.Context) (StorageStats, error) {
	st, err := s.store.DocumentStats(ctx)
	if err != nil {
		return StorageStats{}, err
	}
	return StorageStats{Documents: st, Chunks: st.TotalChunks}, nil
}

// APIUsage summarizes request volume and latency over the trailing
// window, bounded to 1-168 hours (§6) by the caller.
func (s *Service) APIUsage(ctx context.Context, hours int) (store.APIUsageSummary, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	return s.store.APIUsage(ctx, since)
}

// LogsQuery narrows Logs results.
type LogsQuery struct {
	Severity string
	Since    *time.Time
	Until    *time.Time
}

// Logs returns a page of durable operational log records.
func (s *Service) Logs(ctx context.Context, q LogsQuery, offset, limit int) ([]store.LogEntry, Page, error) {
	f := store.LogFilter{Severity: q.Severity}
	if q.Since != nil {
		f.Since = sql.NullTime{Time: *q.Since, Valid: true}
	}
	if q.Until != nil {
		f.Until = sql.NullTime{Time: *q.Until, Valid: true}
	}
	entries, total, err := s.store.ListLogEntries(ctx, f, offset, limit)
	if err != nil {
		return nil, Page{}, err
	}
	return entries, Page{Offset: offset, Limit: limit, Total: total}, nil
}

// Metrics returns the durable API usage summary for the last hour, the
// same shape the Prometheus /metrics endpoint exposes as gauges but
// queryable through the JSON admin surface.
func (s *Service) Metrics(ctx context.Context) (store.APIUsageSummary, error) {
	return s.APIUsage(ctx, 1)
}
