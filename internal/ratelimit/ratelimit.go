// Package ratelimit enforces the admin-configurable rate_limit_per_minute
// knob (spec.md §1/§6) per authenticated user, grounded on the shape of
// the teacher pack's per-IP token-bucket limiter: a map of per-key
// token buckets behind a mutex, with a background goroutine evicting
// entries that have gone idle.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/finrag/finrag/internal/settings"
)

const evictAfter = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter rate-limits by key (the authenticated user id), re-reading the
// configured per-minute rate from the live settings snapshot on every
// new bucket so an admin's config update takes effect for new callers
// without a restart.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*entry
	settings *settings.Cache

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Limiter and starts its background eviction loop.
func New(cfg *settings.Cache) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*entry),
		settings: cfg,
		stopCh:   make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Close stops the background eviction loop.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow reports whether a request keyed by key (typically a user id)
// may proceed under the current rate_limit_per_minute setting.
func (l *Limiter) Allow(key string) bool {
	return l.bucketFor(key).Allow()
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.buckets[key]
	if !ok {
		perMinute := l.settings.Snapshot().Int("rate_limit_per_minute")
		e = &entry{limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), int(perMinute))}
		l.buckets[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-evictAfter)
	for key, e := range l.buckets {
		if e.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
