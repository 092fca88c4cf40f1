// Package auth implements the authentication and role gate (C10):
// registration, login, bearer-token verification, and the two-step
// single-use password reset flow, plus the admin force-reset
// operation, all per spec.md §4.5.
//
// Passwords are hashed with bcrypt (a slow, memory-hard KDF, cost
// fixed at deployment) and bearer/reset tokens are signed JWTs
// (golang-jwt/jwt/v5, HS256). A reset token carries a distinct
// "purpose" claim so it can never be replayed as a bearer token.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/store"
)

// bcryptCost is fixed at deployment per spec.md §4.5; bcrypt.DefaultCost
// (10) is a reasonable balance of hashing time for an interactive login
// path.
const bcryptCost = bcrypt.DefaultCost

const (
	purposeClaim    = "purpose"
	purposeReset    = "reset"
	resetTokenTTL   = time.Hour
	tempPasswordLen = 12
)

// Claims is the bearer-token JWT payload. Subject carries the username
// per spec.md §4.5.
type Claims struct {
	jwt.RegisteredClaims
}

// PublicUser is the user view returned to API callers: never the
// password hash or raw tokens.
type PublicUser struct {
	ID        string
	Username  string
	Email     string
	FullName  string
	Active    bool
	Admin     bool
	MustReset bool
}

func toPublicUser(u *store.User) PublicUser {
	return PublicUser{
		ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName,
		Active: u.Active, Admin: u.Admin, MustReset: u.MustReset,
	}
}

// Service implements the C10 contract.
type Service struct {
	store     *store.Store
	secretKey []byte
	// deliver sends a reset token to a user; the default is a no-op since
	// email delivery is out of scope (spec.md §1 Non-goals).
	deliver func(email, token string)
}

// New constructs a Service. secretKey signs and verifies every JWT this
// service issues; it must come from configuration or the environment,
// never a hard-coded literal.
func New(s *store.Store, secretKey []byte) *Service {
	return &Service{store: s, secretKey: secretKey, deliver: func(string, string) {}}
}

// SetDeliveryChannel overrides how a minted reset token is emitted
// (e.g. to a test sink); production wiring can leave the no-op default
// since outbound email is out of scope.
func (s *Service) SetDeliveryChannel(deliver func(email, token string)) {
	s.deliver = deliver
}

// Register creates a new user with a bcrypt-hashed password. Username
// and email must both be unique (apperr.Conflict otherwise). fullName
// is optional per spec.md §6 and may be empty.
func (s *Service) Register(ctx context.Context, username, email, password, fullName string) (*PublicUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := store.User{
		ID:           "user_" + uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Active:       true,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.New(apperr.Conflict, "username or email already registered")
		}
		return nil, err
	}
	pub := toPublicUser(&u)
	return &pub, nil
}

// LoginResult carries the issued bearer token alongside its owner.
type LoginResult struct {
	Token string
	User  PublicUser
}

// Login verifies username/password and, on success, mints a bearer
// token with the configured lifetime and records last_login. Inactive
// users are rejected.
func (s *Service) Login(ctx context.Context, username, password string, tokenTTL time.Duration) (*LoginResult, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.Authentication, "invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.Authentication, "invalid username or password")
	}
	if !u.Active {
		return nil, apperr.New(apperr.Authentication, "account is inactive")
	}

	token, err := s.issueBearerToken(u.Username, tokenTTL)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateLastLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: toPublicUser(u)}, nil
}

// Verify decodes and validates a bearer token, resolving the subject
// to an active user. requireAdmin additionally rejects non-admins with
// an Authorization-kind error.
func (s *Service) Verify(ctx context.Context, tokenString string, requireAdmin bool) (*PublicUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.Authentication, "invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, apperr.New(apperr.Authentication, "token missing subject")
	}
	if claims.Issuer == purposeReset {
		return nil, apperr.New(apperr.Authentication, "reset tokens cannot be used as bearer tokens")
	}

	u, err := s.store.GetUserByUsername(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.Authentication, "user not found")
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, apperr.New(apperr.Authentication, "account is inactive")
	}
	if requireAdmin && !u.Admin {
		return nil, apperr.New(apperr.Authorization, "admin privileges required")
	}

	pub := toPublicUser(u)
	return &pub, nil
}

// ChangePassword verifies the caller's current password and replaces
// it with newPassword, clearing must_reset. Unlike ResetPassword this
// never touches the reset_token fields since it isn't part of that
// flow.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.Authentication, "user not found")
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.New(apperr.Authentication, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.store.ResetPassword(ctx, u.ID, string(hash), true)
}

// ForgotPassword replies indistinguishably regardless of whether email
// exists. If it does, a signed reset token (1-hour lifetime, distinct
// "purpose" claim) is minted and persisted, then handed to the
// delivery channel.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.issueResetToken(u.Username)
	if err != nil {
		return err
	}
	if err := s.store.SetResetToken(ctx, u.ID, token); err != nil {
		return err
	}
	s.deliver(u.Email, token)
	return nil
}

// ResetPassword verifies a reset token's signature, expiry, and
// purpose claim, locates the user whose stored reset_token still
// matches it, and atomically updates the password hash while clearing
// both reset fields (§I4: single-use).
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !parsed.Valid {
		return apperr.New(apperr.Authentication, "invalid or expired reset token")
	}
	if p, _ := claims.GetIssuer(); p != purposeReset {
		return apperr.New(apperr.Authentication, "token is not a reset token")
	}

	u, err := s.store.GetUserByResetToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.Authentication, "reset token has already been used")
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.store.ResetPassword(ctx, u.ID, string(hash), true)
}

// AdminForceReset generates a 12-character temporary password meeting
// the upper/lower/digit/symbol requirement, sets must_reset, and
// returns the plaintext exactly once; callers are responsible for the
// accompanying audit entry (§4.6).
func (s *Service) AdminForceReset(ctx context.Context, userID string) (string, error) {
	temp, hash, err := s.GenerateTempPasswordHash()
	if err != nil {
		return "", err
	}
	if err := s.store.ForcePasswordReset(ctx, userID, hash); err != nil {
		return "", err
	}
	return temp, nil
}

// GenerateTempPasswordHash generates a compliant temporary password and
// its bcrypt hash without touching the store, so a caller that needs to
// couple the write with its own transaction (the admin force-reset
// effect) can persist it atomically with an audit row.
func (s *Service) GenerateTempPasswordHash() (plaintext, hash string, err error) {
	temp, err := generateTempPassword()
	if err != nil {
		return "", "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(temp), bcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing password: %w", err)
	}
	return temp, string(h), nil
}

func (s *Service) issueBearerToken(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
}

// issueResetToken mints a reset-purpose JWT. The purpose claim is
// carried in the standard "iss" (issuer) field rather than a custom
// claim, since jwt.RegisteredClaims has no room for extra fields
// without a custom struct, and iss is otherwise unused in a
// single-service deployment.
func (s *Service) issueResetToken(username string) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    purposeReset,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(resetTokenTTL)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
}

const tempPasswordAlphabet = "abcdefghijkmnopqrstuvwxyz" +
	"ABCDEFGHJKLMNPQRSTUVWXYZ" +
	"23456789" +
	"!@#$%^&*"

// generateTempPassword produces a 12-character password guaranteed to
// contain at least one lowercase, uppercase, digit, and symbol
// character, using crypto/rand throughout.
func generateTempPassword() (string, error) {
	classes := []string{
		"abcdefghijkmnopqrstuvwxyz",
		"ABCDEFGHJKLMNPQRSTUVWXYZ",
		"23456789",
		"!@#$%^&*",
	}

	out := make([]byte, tempPasswordLen)
	for i, class := range classes {
		c, err := randChar(class)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	for i := len(classes); i < tempPasswordLen; i++ {
		c, err := randChar(tempPasswordAlphabet)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func randChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
