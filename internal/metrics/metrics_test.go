//go:build cgo

package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/finrag/finrag/internal/store"
)

func TestObserveHTTPIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/chat", 200, 120*time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/chat", "2xx")); got != 1 {
		t.Errorf("counter = %v, want 1", got)
	}
}

func TestObserveHTTPLabelsStatusByClass(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("POST", "/auth/login", 401, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/auth/login", "4xx")); got != 1 {
		t.Errorf("counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/auth/login", "2xx")); got != 0 {
		t.Errorf("2xx counter = %v, want 0", got)
	}
}

func TestObserveRAGQueryAndIngestDoNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRAGQuery(2 * time.Second)
	m.ObserveIngest(30 * time.Second)
}

func TestRecorderObservePersistsSample(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	r := NewRecorder(s)
	ctx := context.Background()
	if err := r.Observe(ctx, "/chat", "POST", 200, 250*time.Millisecond, "user_1", ""); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	summary, err := s.APIUsage(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("APIUsage: %v", err)
	}
	if summary.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", summary.TotalRequests)
	}
}
