package admin

import (
	"context"
	"time"

	"github.com/finrag/finrag/internal/store"
	"github.com/finrag/finrag/internal/vectorindex"
)

// UserAnalytics summarizes registrations and account status over a
// trailing window, bounded to 1-365 days (§6) by the caller.
type UserAnalytics struct {
	TotalUsers         int
	ActiveUsers        int
	RegistrationsByDay map[string]int
}

// Users computes the user analytics view.
func (s *Service) Users(ctx context.Context, days int) (UserAnalytics, error) {
	total, active, err := s.store.UserCounts(ctx)
	if err != nil {
		return UserAnalytics{}, err
	}
	hist, err := s.store.RegistrationHistogram(ctx, days)
	if err != nil {
		return UserAnalytics{}, err
	}
	return UserAnalytics{TotalUsers: total, ActiveUsers: active, RegistrationsByDay: hist}, nil
}

// Sessions computes the session analytics view over the trailing day.
func (s *Service) Sessions(ctx context.Context) (store.SessionStats, error) {
	return s.store.SessionAnalytics(ctx, time.Now().Add(-24*time.Hour))
}

// Documents computes the document analytics view: corpus totals plus
// the per-type and recent-upload breakdowns the vector index already
// tracks for index-health purposes.
func (s *Service) Documents(ctx context.Context) (vectorindex.Stats, error) {
	return s.index.Stats(ctx)
}
