//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func sampleConfig(name string) ConfigSetting {
	return ConfigSetting{
		Name:         name,
		Value:        "10",
		DefaultValue: "10",
		DataType:     "int",
		MinValue:     sql.NullFloat64{Float64: 1, Valid: true},
		MaxValue:     sql.NullFloat64{Float64: 100, Valid: true},
		Category:     "retrieval",
		Description:  "test setting",
	}
}

func TestSeedAndGetConfigSetting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedConfigSetting(ctx, sampleConfig("top_k")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.GetConfigSetting(ctx, "top_k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "10" {
		t.Errorf("value: got %q, want 10", got.Value)
	}
	if got.Category != "retrieval" {
		t.Errorf("category: got %q", got.Category)
	}
}

func TestSeedConfigSettingDoesNotOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedConfigSetting(ctx, sampleConfig("top_k")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.UpdateConfigSetting(ctx, "top_k", "20", "admin1"); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Re-seeding (e.g. on restart) must not clobber the operator's override.
	if err := s.SeedConfigSetting(ctx, sampleConfig("top_k")); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	got, err := s.GetConfigSetting(ctx, "top_k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "20" {
		t.Errorf("expected override preserved, got %q", got.Value)
	}
}

func TestUpdateConfigSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateConfigSetting(ctx, "missing", "1", "admin1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetConfigSetting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedConfigSetting(ctx, sampleConfig("top_k")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.UpdateConfigSetting(ctx, "top_k", "99", "admin1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.ResetConfigSetting(ctx, "top_k", "admin1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := s.GetConfigSetting(ctx, "top_k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != got.DefaultValue {
		t.Errorf("expected value reset to default %q, got %q", got.DefaultValue, got.Value)
	}
}

func TestAllConfigSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SeedConfigSetting(ctx, sampleConfig("top_k")); err != nil {
		t.Fatalf("seed top_k: %v", err)
	}
	c2 := sampleConfig("chunk_size")
	c2.Category = "ingest"
	if err := s.SeedConfigSetting(ctx, c2); err != nil {
		t.Fatalf("seed chunk_size: %v", err)
	}

	all, err := s.AllConfigSettings(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 settings, got %d", len(all))
	}
}
