//go:build cgo

package admin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/finrag/finrag/internal/activity"
	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/auth"
	"github.com/finrag/finrag/internal/metrics"
	"github.com/finrag/finrag/internal/settings"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := settings.NewCache(s)
	if err := cfg.Seed(context.Background()); err != nil {
		t.Fatalf("seeding settings: %v", err)
	}

	idx := vectorindex.New(s)
	act := activity.New(s)
	authSvc := auth.New(s, []byte("test-secret"))
	rec := metrics.NewRecorder(s)

	return New(s, act, cfg, idx, authSvc, rec), s
}

func adminActor() Actor {
	return Actor{ID: "admin_1", Username: "root", ClientAddr: "127.0.0.1"}
}

func TestSetUserActiveTogglesAndAudits(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, store.User{ID: "u1", Username: "alice", Email: "a@example.com", PasswordHash: "x", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	view, err := svc.SetUserActive(ctx, adminActor(), "u1", false)
	if err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if view.Active {
		t.Error("expected user to be inactive")
	}

	entries, page, err := svc.UserActivity(ctx, "admin_1", 0, 10)
	if err != nil {
		t.Fatalf("UserActivity: %v", err)
	}
	if page.Total != 1 || entries[0].Action != "user_status" {
		t.Errorf("entries = %+v, page = %+v", entries, page)
	}
}

func TestSetUserActiveUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SetUserActive(context.Background(), adminActor(), "missing", false)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestForceResetPasswordReturnsUsablePassword(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, store.User{ID: "u1", Username: "alice", Email: "a@example.com", PasswordHash: "x", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	res, err := svc.ForceResetPassword(ctx, adminActor(), "u1")
	if err != nil {
		t.Fatalf("ForceResetPassword: %v", err)
	}
	if len(res.TemporaryPassword) == 0 {
		t.Fatal("expected a non-empty temporary password")
	}

	u, err := s.GetUserByID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !u.MustReset {
		t.Error("expected must_reset to be set")
	}
}

func TestDeleteDocumentRemovesRowAndAudits(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	if err := s.CreateDocument(ctx, store.Document{ID: "doc_1", Filename: "a.pdf", UploaderUserID: "u1", UploaderUsername: "alice", FileType: "pdf", ChunkCount: 2}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	res, err := svc.DeleteDocument(ctx, adminActor(), "doc_1")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if res.ChunksDeleted != 2 {
		t.Errorf("ChunksDeleted = %d, want 2", res.ChunksDeleted)
	}

	if _, err := s.GetDocument(ctx, "doc_1"); err != store.ErrNotFound {
		t.Fatalf("expected document to be gone, got err = %v", err)
	}
}

func TestUpdateConfigValidatesAndAudits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateConfig(ctx, adminActor(), "top_k", "not-a-number"); err == nil {
		t.Fatal("expected validation failure for non-numeric top_k")
	}

	cs, err := svc.UpdateConfig(ctx, adminActor(), "top_k", "8")
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if cs.Value != "8" {
		t.Errorf("Value = %q, want 8", cs.Value)
	}
}

func TestUpdateConfigRejectsOutOfBounds(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateConfig(context.Background(), adminActor(), "top_k", "50")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.Validation {
		t.Fatalf("err = %v, want Validation", err)
	}
}

func TestHealthReportsOK(t *testing.T) {
	svc, _ := newTestService(t)
	h := svc.Health(context.Background())
	if h.Status != "ok" {
		t.Errorf("Status = %q, want ok", h.Status)
	}
}

func TestUsersAnalytics(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, store.User{ID: "u1", Username: "alice", Email: "a@example.com", PasswordHash: "x", Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ua, err := svc.Users(ctx, 30)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if ua.TotalUsers != 1 || ua.ActiveUsers != 1 {
		t.Errorf("ua = %+v", ua)
	}
}

func TestLogsFiltersBySeverity(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	if err := s.InsertLogEntry(ctx, "ERROR", "boom", nil); err != nil {
		t.Fatalf("InsertLogEntry: %v", err)
	}
	if err := s.InsertLogEntry(ctx, "INFO", "ok", nil); err != nil {
		t.Fatalf("InsertLogEntry: %v", err)
	}

	entries, page, err := svc.Logs(ctx, LogsQuery{Severity: "ERROR"}, 0, 10)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if page.Total != 1 || entries[0].Message != "boom" {
		t.Errorf("entries = %+v, page = %+v", entries, page)
	}
}
