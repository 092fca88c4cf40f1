package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/auth"
	"github.com/finrag/finrag/internal/metrics"
	"github.com/finrag/finrag/internal/ratelimit"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyUser
)

// requestIDMiddleware stamps every request with an id, reusing an
// inbound X-Request-Id if the caller already supplied one so a
// request can be traced across a proxy boundary.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logMiddleware logs each request with method, path, status, duration,
// and the request id stamped by requestIDMiddleware.
func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start).Round(time.Millisecond),
			"remote", r.RemoteAddr,
			"request_id", requestID,
		)
	})
}

// instrument wraps a single route's handler so every call records the
// Prometheus histograms and a durable metrics_samples row, labeled with
// the route's mux pattern (not its literal path) so per-route metrics
// don't explode in cardinality over path parameters like document ids.
func instrument(route string, m *metrics.Metrics, rec *metrics.Recorder, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next(rw, r)

		elapsed := time.Since(start)
		m.ObserveHTTP(r.Method, route, rw.status, elapsed)

		user, _ := r.Context().Value(ctxKeyUser).(*auth.PublicUser)
		var userID, errMsg string
		if user != nil {
			userID = user.ID
		}
		if rw.status >= 400 {
			errMsg = http.StatusText(rw.status)
		}
		if err := rec.Observe(r.Context(), route, r.Method, rw.status, elapsed, userID, errMsg); err != nil {
			slog.Error("persisting metric sample", "error", err)
		}
	}
}

// authMiddleware resolves the Authorization bearer token into a user
// and stores it on the request context; it never rejects a request
// itself; requireAuth/requireAdmin on each handler do that, since
// several routes (health, metrics, public auth, document upload) are
// reachable without a token.
func authMiddleware(authSvc *auth.Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		user, err := authSvc.Verify(r.Context(), token, false)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware enforces the admin-configurable
// rate_limit_per_minute knob (§1/§6) per authenticated user; requests
// without a resolved user (public routes) are not limited here since
// requireAuth/requireAdmin already gate those endpoints separately.
func rateLimitMiddleware(rl *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := r.Context().Value(ctxKeyUser).(*auth.PublicUser)
		if user == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.Allow(user.ID) {
			w.Header().Set("Retry-After", "1")
			requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
			writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
				Error:     "rate_limited",
				Message:   "rate limit exceeded",
				Details:   map[string]any{"request_id": requestID},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware catches panics, logs the stack trace, and returns
// the error envelope's internal-error shape.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					"error", fmt.Sprintf("%v", rec),
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeError(w, r, apperr.New(apperr.Internal, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers. origins is a comma-separated list
// of allowed origins; if empty, CORS headers are not set.
func corsMiddleware(origins string, next http.Handler) http.Handler {
	if origins == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
