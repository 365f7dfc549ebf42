package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// WindowStore counts hits per key in fixed windows.
type WindowStore interface {
	// Hit increments the counter for key and returns the post-increment count.
	// A window that is absent or at least window old restarts at zero from now.
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// RateLimiter is a fixed-window limiter: bursts straddling a window boundary
// can reach up to twice the nominal limit.
type RateLimiter struct {
	store  WindowStore
	window time.Duration
	limit  int
}

// NewRateLimiter allows limit hits per key per window.
func NewRateLimiter(store WindowStore, window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{store: store, window: window, limit: limit}
}

// Exceeded records one hit for key and reports whether it went over the limit.
func (r *RateLimiter) Exceeded(ctx context.Context, key Key, now time.Time) (bool, error) {
	count, err := r.store.Hit(ctx, key.String(), r.window, now)
	if err != nil {
		return false, err
	}
	return count > r.limit, nil
}

type rateWindow struct {
	count     int
	startedAt time.Time
	length    time.Duration
}

func (w rateWindow) expired(now time.Time) bool {
	return now.Sub(w.startedAt) >= w.length
}

// MemWindowStore is the in-process WindowStore. Each key is updated atomically.
type MemWindowStore struct {
	windows *xsync.MapOf[string, rateWindow]
}

// NewMemWindowStore creates an empty in-memory window store.
func NewMemWindowStore() *MemWindowStore {
	return &MemWindowStore{windows: xsync.NewMapOf[string, rateWindow]()}
}

var _ WindowStore = (*MemWindowStore)(nil)

func (s *MemWindowStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	w, _ := s.windows.Compute(key, func(old rateWindow, loaded bool) (rateWindow, bool) {
		if !loaded || old.expired(now) {
			old = rateWindow{startedAt: now, length: window}
		}
		old.count++
		return old, false
	})
	return w.count, nil
}

// Prune drops expired windows and returns how many were removed.
func (s *MemWindowStore) Prune(now time.Time) int {
	removed := 0
	s.windows.Range(func(key string, w rateWindow) bool {
		if !w.expired(now) {
			return true
		}
		s.windows.Compute(key, func(old rateWindow, loaded bool) (rateWindow, bool) {
			drop := loaded && old.expired(now)
			if drop {
				removed++
			}
			return old, drop
		})
		return true
	})
	return removed
}

// RunJanitor prunes expired windows every interval until ctx is done.
func (s *MemWindowStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Prune(t); n > 0 {
				slog.Debug("pruned rate windows", "count", n)
			}
		}
	}
}
