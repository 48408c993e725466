package middleware

import (
	"context"
	"sync"
	"time"
)

// window is one key's fixed-window counter.
type window struct {
	hits int
	ends time.Time
}

func (w *window) expired(now time.Time) bool { return !now.Before(w.ends) }

// InMemoryRateLimitStore counts requests per key in process memory. It
// serves single-instance deployments without Redis. Safe for concurrent use.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*window
	now     func() time.Time
}

// NewInMemoryRateLimitStore returns an empty store on the wall clock.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{buckets: map[string]*window{}, now: time.Now}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, cfg RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.buckets[key]
	if !ok || w.expired(now) {
		w = &window{ends: now.Add(cfg.WindowDuration)}
		s.buckets[key] = w
	}
	if w.hits >= cfg.RequestsPerWindow {
		return false, 0, retryAfterSeconds(w.ends.Sub(now))
	}
	w.hits++
	return true, cfg.RequestsPerWindow - w.hits, 0
}

// Cleanup drops windows that have ended.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.buckets {
		if w.expired(now) {
			delete(s.buckets, key)
		}
	}
}

// StartCleanup calls Cleanup every interval in a goroutine that exits with
// ctx. An interval of a few times the longest window keeps memory bounded.
func (s *InMemoryRateLimitStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
