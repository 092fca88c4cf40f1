package store

import (
	"context"
	"database/sql"
	"time"
)

// MetricSample mirrors the metrics_samples table: one row per completed
// HTTP request, durable backing for the admin analytics endpoints
// (request volume, error rate, latency percentiles) independent of the
// in-process Prometheus counters (§C15).
type MetricSample struct {
	Endpoint     string
	Method       string
	Status       int
	ElapsedMS    int64
	UserID       sql.NullString
	ErrorMessage sql.NullString
}

// InsertMetricSample records one completed request.
func (s *Store) InsertMetricSample(ctx context.Context, m MetricSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics_samples (endpoint, method, status, elapsed_ms, user_id, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Endpoint, m.Method, m.Status, m.ElapsedMS, m.UserID, m.ErrorMessage)
	return err
}

// APIUsageSummary aggregates request volume and error rate over a window,
// for the admin analytics dashboard.
type APIUsageSummary struct {
	TotalRequests  int
	ErrorRequests  int
	AvgElapsedMS   float64
	P95ElapsedMS   float64
}

// APIUsage summarizes metrics_samples rows created since the given time.
func (s *Store) APIUsage(ctx context.Context, since time.Time) (APIUsageSummary, error) {
	var sum APIUsageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status >= 400 THEN 1 ELSE 0 END), 0), COALESCE(AVG(elapsed_ms), 0)
		FROM metrics_samples WHERE created_at >= ?
	`, since).Scan(&sum.TotalRequests, &sum.ErrorRequests, &sum.AvgElapsedMS)
	if err != nil {
		return sum, err
	}

	// SQLite has no native percentile function; approximate p95 by ordering
	// elapsed_ms and taking the row at the 95th-percentile offset.
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM metrics_samples WHERE created_at >= ?`, since,
	).Scan(&count); err != nil {
		return sum, err
	}
	if count == 0 {
		return sum, nil
	}
	offset := int(float64(count) * 0.95)
	if offset >= count {
		offset = count - 1
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT elapsed_ms FROM metrics_samples WHERE created_at >= ?
		ORDER BY elapsed_ms ASC LIMIT 1 OFFSET ?
	`, since, offset).Scan(&sum.P95ElapsedMS); err != nil {
		return sum, err
	}
	return sum, nil
}

// PruneMetricsOlderThan deletes metrics_samples rows older than cutoff,
// keeping the durable table from growing unbounded.
func (s *Store) PruneMetricsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metrics_samples WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
