// Package admin implements the C12 admin control plane: user lifecycle,
// document oversight, system monitoring, analytics, and dynamic
// configuration. Every mutation here is wrapped in activity.Logger so
// it lands as one atomic (effect, log) pair (§4.6); every operation is
// reachable only through a request that has already passed
// auth.Service.Verify(requireAdmin=true) — this package assumes the
// caller is already authorized and only records who acted.
package admin

import (
	"github.com/finrag/finrag/internal/activity"
	"github.com/finrag/finrag/internal/auth"
	"github.com/finrag/finrag/internal/metrics"
	"github.com/finrag/finrag/internal/settings"
	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

// Actor identifies the admin performing an action, for the audit trail.
type Actor struct {
	ID         string
	Username   string
	ClientAddr string
}

// Service wires the admin surface to its underlying collaborators.
type Service struct {
	store    *store.Store
	activity *activity.Logger
	settings *settings.Cache
	index    *vectorindex.Index
	auth     *auth.Service
	recorder *metrics.Recorder
}

// New constructs the admin Service.
func New(s *store.Store, act *activity.Logger, cfg *settings.Cache, idx *vectorindex.Index, authSvc *auth.Service, recorder *metrics.Recorder) *Service {
	return &Service{store: s, activity: act, settings: cfg, index: idx, auth: authSvc, recorder: recorder}
}

// Page describes a paginated result; Total is the full match count
// regardless of offset/limit. Handlers are responsible for enforcing
// the 10-100 page-size bound (§6) before calling into this package.
type Page struct {
	Offset int
	Limit  int
	Total  int
}
