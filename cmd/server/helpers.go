package main

import (
	"context"
	"net/http"
	"time"
)

// withTimeout bounds a handler's downstream work to d, derived from the
// request's own context so client disconnects and shutdown still
// cancel it.
func withTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
