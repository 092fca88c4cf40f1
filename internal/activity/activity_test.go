//go:build cgo

package activity

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/finrag/finrag/internal/store"
)

func newTestLogger(t *testing.T) (*Logger, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestWithEffectCommitsEffectAndLogTogether(t *testing.T) {
	l, s := newTestLogger(t)
	ctx := context.Background()

	err := l.WithEffect(ctx, Entry{
		AdminID: "admin1", AdminUsername: "root", Action: "config_update",
		ResourceType: "config", ResourceID: "chunk_size",
		Details: map[string]any{"old": 800, "new": 1000},
	}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE config_settings SET value = '1000' WHERE name = 'chunk_size'`)
		return err
	})
	if err != nil {
		t.Fatalf("WithEffect: %v", err)
	}

	entries, total, err := l.List(ctx, store.ActivityFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if entries[0].Action != "config_update" || entries[0].Result != "success" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestWithEffectRollsBackBothOnFailure(t *testing.T) {
	l, s := newTestLogger(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, store.User{ID: "u1", Username: "alice", Email: "a@example.com", PasswordHash: "x", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	wantErr := errors.New("effect failed")
	err := l.WithEffect(ctx, Entry{
		AdminID: "admin1", Action: "user_status", ResourceType: "user", ResourceID: "u1",
	}, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET active = 0 WHERE id = 'u1'`); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	u, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.Active {
		t.Error("expected user status change to roll back")
	}

	_, total, err := l.List(ctx, store.ActivityFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 {
		t.Errorf("expected no log entry for a rolled-back effect, got %d", total)
	}
}

func TestListFiltersByAdmin(t *testing.T) {
	l, _ := newTestLogger(t)
	ctx := context.Background()

	for _, admin := range []string{"admin1", "admin2"} {
		if err := l.Log(ctx, Entry{AdminID: admin, Action: "view", ResourceType: "doc", ResourceID: "1"}, "success"); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, total, err := l.List(ctx, store.ActivityFilter{AdminID: "admin1"}, 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(entries) != 1 || entries[0].AdminID != "admin1" {
		t.Errorf("entries = %+v, total = %d", entries, total)
	}
}
