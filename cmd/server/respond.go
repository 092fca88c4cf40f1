package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/finrag/finrag/internal/apperr"
)

// errorEnvelope is the response body for every non-2xx response (§6/§7).
// Details always carries the request id so a client can correlate a
// failure with the corresponding server log line.
type errorEnvelope struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// writeError translates err into the error envelope. Admin endpoints
// never fall back silently: every error surfaces, mapped through the
// apperr taxonomy when possible and as an internal error otherwise.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID, _ := r.Context().Value(ctxKeyRequestID).(string)

	kind := apperr.Internal
	message := "an internal error occurred"
	var details map[string]any

	if appErr, ok := apperr.As(err); ok {
		kind = appErr.Kind
		message = appErr.Message
		details = appErr.Details
	} else {
		slog.Error("unhandled error", "error", err, "request_id", requestID, "path", r.URL.Path)
	}

	if details == nil {
		details = map[string]any{}
	}
	details["request_id"] = requestID

	writeJSON(w, apperr.StatusCode(kind), errorEnvelope{
		Error:     string(kind),
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeValidationError is a convenience for handler-level input
// validation failures that never reach a service method.
func writeValidationError(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, apperr.Validationf(message))
}
