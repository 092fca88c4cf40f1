package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/auth"
	"github.com/finrag/finrag/internal/settings"
)

type authHandler struct {
	auth     *auth.Service
	settings *settings.Cache
}

// POST /api/v1/auth/register
func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		writeValidationError(w, r, "username, email, and a password of at least 8 characters are required")
		return
	}

	u, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// POST /api/v1/auth/login
func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeValidationError(w, r, "username and password are required")
		return
	}

	ttl := time.Duration(h.settings.Snapshot().Int("access_token_expire_minutes")) * time.Minute
	res, err := h.auth.Login(r.Context(), req.Username, req.Password, ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": res.Token,
		"token_type":   "bearer",
		"user":         res.User,
	})
}

// debugMode gates whether forgot-password echoes the reset token in
// the response body, for local/development use without an email
// delivery channel (spec.md §1 Non-goals: email delivery is contract
// only).
var debugMode bool

// POST /api/v1/auth/forgot-password
func (h *authHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	if req.Email == "" {
		writeValidationError(w, r, "email is required")
		return
	}

	var captured string
	if debugMode {
		h.auth.SetDeliveryChannel(func(_, token string) { captured = token })
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}

	resp := map[string]any{"message": "if the email is registered, a reset token has been issued"}
	if debugMode && captured != "" {
		resp["reset_token"] = captured
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/auth/reset-password
func (h *authHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	if req.Token == "" || len(req.NewPassword) < 8 {
		writeValidationError(w, r, "token and a new password of at least 8 characters are required")
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "password has been reset"})
}

// GET /api/v1/auth/me
func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuth(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// POST /api/v1/auth/change-password
func (h *authHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, r, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeValidationError(w, r, "new password must be at least 8 characters")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// optionalUser returns the bearer-resolved user if one is present on the
// request context, or nil for an anonymous caller. Unlike requireAuth it
// never rejects the request — for routes spec.md §6 lists as public.
func optionalUser(r *http.Request) *auth.PublicUser {
	user, _ := r.Context().Value(ctxKeyUser).(*auth.PublicUser)
	return user
}

func requireAuth(w http.ResponseWriter, r *http.Request) (*auth.PublicUser, bool) {
	user, _ := r.Context().Value(ctxKeyUser).(*auth.PublicUser)
	if user == nil {
		writeError(w, r, apperr.New(apperr.Authentication, "a valid bearer token is required"))
		return nil, false
	}
	return user, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.PublicUser, bool) {
	user, ok := requireAuth(w, r)
	if !ok {
		return nil, false
	}
	if !user.Admin {
		writeError(w, r, apperr.New(apperr.Authorization, "admin privileges required"))
		return nil, false
	}
	return user, true
}
