//go:build cgo

package store

import (
	"context"
	"testing"
)

func TestInsertAndListLogEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertLogEntry(ctx, "ERROR", "upstream failure", map[string]any{"endpoint": "/chat"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertLogEntry(ctx, "INFO", "request handled", nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	entries, total, err := s.ListLogEntries(ctx, LogFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 entries, got total=%d len=%d", total, len(entries))
	}

	filtered, total, err := s.ListLogEntries(ctx, LogFilter{Severity: "ERROR"}, 0, 10)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if total != 1 || filtered[0].Message != "upstream failure" {
		t.Fatalf("filtered = %+v, total = %d", filtered, total)
	}
}
