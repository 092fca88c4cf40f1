// Package session implements the conversation session manager (C8):
// session ownership, ordered message-pair append, history retrieval
// capped to the configured window, and background eviction of
// inactive sessions.
package session

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/finrag/finrag/internal/apperr"
	"github.com/finrag/finrag/internal/store"
)

// stripeCount shards the per-session append lock across a fixed number
// of buckets so concurrent chats on different sessions don't contend,
// while two requests racing on the same session still serialize.
const stripeCount = 64

// Manager is the session manager. Construct with New.
type Manager struct {
	store   *store.Store
	log     *slog.Logger
	stripes [stripeCount]sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New wraps a store behind the session manager contract.
func New(s *store.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: s, log: log}
}

// Create starts a new session owned by userID and returns its id.
func (m *Manager) Create(ctx context.Context, sessionID, userID string) error {
	return m.store.CreateSession(ctx, sessionID, userID)
}

// EnsureOwned verifies sessionID exists and belongs to userID. A missing
// session is NotFound; a session owned by someone else is Authorization
// (spec.md I2/P2 distinguish the two), not NotFound.
func (m *Manager) EnsureOwned(ctx context.Context, sessionID, userID string) error {
	sess, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundf("session not found")
	}
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return apperr.New(apperr.Authorization, "session does not belong to this user")
	}
	return nil
}

// AppendPair persists a user/assistant exchange, serialized per session
// so two concurrent requests against the same session can never
// interleave their inserts (§I3: strictly increasing message order).
// Different sessions proceed in parallel via the stripe assignment.
func (m *Manager) AppendPair(ctx context.Context, sessionID, query, answer string) error {
	stripe := &m.stripes[stripeIndex(sessionID)]
	stripe.Lock()
	defer stripe.Unlock()
	return m.store.AppendMessagePair(ctx, sessionID, query, answer)
}

// History returns the most recent maxTurns Q/A turns (2*maxTurns
// messages) for a session, oldest first, ready for the prompt builder.
// Retains all messages in storage (O3): only the window returned here
// is capped.
func (m *Manager) History(ctx context.Context, sessionID string, maxTurns int) ([]store.Message, error) {
	return m.store.History(ctx, sessionID, maxTurns*2)
}

// Touch refreshes a session's last-activity timestamp without
// appending a message, used by handlers that read a session (e.g.
// fetching history) without necessarily chatting on it.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	return m.store.TouchSession(ctx, sessionID)
}

// StartEvictionLoop runs a background ticker that evicts sessions idle
// longer than inactivityWindow, checking every interval. The returned
// func stops the loop; callers should invoke it on shutdown.
func (m *Manager) StartEvictionLoop(interval, inactivityWindow time.Duration) func() {
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	go m.evictLoop(stopCh, interval, inactivityWindow)
	return func() {
		m.stopOnce.Do(func() { close(stopCh) })
	}
}

func (m *Manager) evictLoop(stopCh <-chan struct{}, interval, inactivityWindow time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			n, err := m.store.EvictInactiveSessions(context.Background(), time.Now().Add(-inactivityWindow))
			if err != nil {
				m.log.Warn("session eviction failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				m.log.Info("evicted inactive sessions", slog.Int("count", n))
			}
		}
	}
}

func stripeIndex(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % stripeCount)
}
