//go:build cgo

package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/finrag/finrag/internal/store"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	c := NewCache(s)
	if err := c.Seed(context.Background()); err != nil {
		t.Fatalf("seeding settings: %v", err)
	}
	return c
}

func TestSeedPopulatesDefaults(t *testing.T) {
	c := newTestCache(t)
	snap := c.Snapshot()

	if got := snap.Int("top_k"); got != 5 {
		t.Errorf("top_k = %d, want 5", got)
	}
	if got := snap.Float("similarity_threshold"); got != 0.7 {
		t.Errorf("similarity_threshold = %v, want 0.7", got)
	}
	if got := snap.String("chat_model"); got != "gemini-2.5-flash" {
		t.Errorf("chat_model = %q, want gemini-2.5-flash", got)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, "top_k", "9", "admin"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := c.Seed(ctx); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if got := c.Snapshot().Int("top_k"); got != 9 {
		t.Errorf("top_k after re-seed = %d, want 9 (override preserved)", got)
	}
}

func TestUpdateValidatesBounds(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, "chunk_size", "50", "admin"); err == nil {
		t.Fatal("expected validation error for chunk_size below minimum")
	}
	if got := c.Snapshot().Int("chunk_size"); got != 800 {
		t.Errorf("chunk_size changed despite rejected update: %d", got)
	}

	if err := c.Update(ctx, "chunk_size", "1000", "admin"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := c.Snapshot().Int("chunk_size"); got != 1000 {
		t.Errorf("chunk_size = %d, want 1000", got)
	}
}

func TestUpdateRejectsWrongType(t *testing.T) {
	c := newTestCache(t)
	if err := c.Update(context.Background(), "top_k", "not-a-number", "admin"); err == nil {
		t.Fatal("expected validation error for non-integer top_k")
	}
}

func TestUpdateUnknownSetting(t *testing.T) {
	err := newTestCache(t).Update(context.Background(), "does_not_exist", "1", "admin")
	if err == nil {
		t.Fatal("expected error for unknown setting")
	}
}

func TestReset(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Update(ctx, "top_k", "12", "admin"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := c.Reset(ctx, "top_k", "admin"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := c.Snapshot().Int("top_k"); got != 5 {
		t.Errorf("top_k after reset = %d, want 5", got)
	}
}

func TestSnapshotIndependentOfLaterUpdates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	before := c.Snapshot()
	if err := c.Update(ctx, "top_k", "11", "admin"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := before.Int("top_k"); got != 5 {
		t.Errorf("pre-update snapshot mutated: top_k = %d, want 5", got)
	}
	if got := c.Snapshot().Int("top_k"); got != 11 {
		t.Errorf("current snapshot = %d, want 11", got)
	}
}
