//go:build cgo

package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, []byte("test-secret-key")), s
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "alice" || !u.Active {
		t.Errorf("user = %+v", u)
	}

	res, err := svc.Login(ctx, "alice", "Aa1!aa1!", time.Hour)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Error("expected non-empty token")
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "alice", "other@example.com", "Bb2@bb2@", "")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.Conflict {
		t.Fatalf("err = %v, want Conflict kind", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Login(ctx, "alice", "wrong", time.Hour)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.Authentication {
		t.Fatalf("err = %v, want Authentication kind", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	_, err = svc.Login(ctx, "alice", "Aa1!aa1!", time.Hour)
	if err == nil {
		t.Fatal("expected login to fail for inactive user")
	}
}

func TestVerifyValidToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice", "Aa1!aa1!", time.Hour)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	u, err := svc.Verify(ctx, res.Token, false)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Verify resolved to %q, want alice", u.Username)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice", "Aa1!aa1!", -time.Minute)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.Verify(ctx, res.Token, false); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice", "Aa1!aa1!", time.Hour)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err = svc.Verify(ctx, res.Token, true)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.Authorization {
		t.Fatalf("err = %v, want Authorization kind for non-admin", err)
	}
}

func TestForgotPasswordUnknownEmailIsIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
}

func TestResetPasswordFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var captured string
	svc.SetDeliveryChannel(func(email, token string) { captured = token })
	if err := svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if captured == "" {
		t.Fatal("expected a reset token to be delivered")
	}

	if err := svc.ResetPassword(ctx, captured, "NewPass1!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "NewPass1!", time.Hour); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}

	// Single-use: replaying the same token must fail.
	if err := svc.ResetPassword(ctx, captured, "AnotherPass1!"); err == nil {
		t.Fatal("expected reset token reuse to fail")
	}
}

func TestResetTokenCannotBeUsedAsBearerToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var captured string
	svc.SetDeliveryChannel(func(email, token string) { captured = token })
	if err := svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	if _, err := svc.Verify(ctx, captured, false); err == nil {
		t.Fatal("expected reset token to be rejected as a bearer token")
	}
}

func TestBearerTokenCannotBeUsedAsResetToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice", "Aa1!aa1!", time.Hour)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ResetPassword(ctx, res.Token, "New1!aaaa"); err == nil {
		t.Fatal("expected bearer token to be rejected as a reset token")
	}
}

func TestChangePasswordRequiresCorrectOldPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "NewPass1!"); err == nil {
		t.Fatal("expected change-password to fail with the wrong old password")
	}

	if err := svc.ChangePassword(ctx, u.ID, "Aa1!aa1!", "NewPass1!"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "NewPass1!", time.Hour); err != nil {
		t.Fatalf("Login with new password: %v", err)
	}
}

func TestAdminForceResetGeneratesCompliantTempPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "alice", "alice@example.com", "Aa1!aa1!", "Alice Example")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	temp, err := svc.AdminForceReset(ctx, u.ID)
	if err != nil {
		t.Fatalf("AdminForceReset: %v", err)
	}
	if len(temp) != tempPasswordLen {
		t.Fatalf("len(temp) = %d, want %d", len(temp), tempPasswordLen)
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range temp {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*", r):
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		t.Errorf("temp password %q missing a required character class", temp)
	}

	// Login with the old password must now fail since must_reset forces a
	// new password, and the hash has already changed.
	if _, err := svc.Login(ctx, "alice", "Aa1!aa1!", time.Hour); err == nil {
		t.Fatal("expected old password to be rejected after force-reset")
	}
	if _, err := svc.Login(ctx, "alice", temp, time.Hour); err != nil {
		t.Fatalf("Login with temp password: %v", err)
	}
}
