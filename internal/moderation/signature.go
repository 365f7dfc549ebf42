package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SignatureStore remembers when content signatures were last seen.
type SignatureStore interface {
	// Record reports whether key was already recorded within horizon of now,
	// then records now regardless of the outcome.
	Record(ctx context.Context, key string, horizon time.Duration, now time.Time) (bool, error)
}

// DuplicateDetector flags repeats of the same content from the same identity.
type DuplicateDetector struct {
	store   SignatureStore
	horizon time.Duration
}

// NewDuplicateDetector flags a signature seen again within horizon.
func NewDuplicateDetector(store SignatureStore, horizon time.Duration) *DuplicateDetector {
	return &DuplicateDetector{store: store, horizon: horizon}
}

// Seen records signature under key and reports whether it is a repeat.
func (d *DuplicateDetector) Seen(ctx context.Context, key Key, signature string, now time.Time) (bool, error) {
	return d.store.Record(ctx, key.String()+"/"+HashOfString(signature), d.horizon, now)
}

// stampRing keeps the most recent timestamps for one signature.
type stampRing struct {
	stamps []time.Time
	size   int
}

func (r *stampRing) push(t time.Time) {
	if len(r.stamps) == r.size {
		copy(r.stamps, r.stamps[1:])
		r.stamps = r.stamps[:r.size-1]
	}
	r.stamps = append(r.stamps, t)
}

// within evicts stamps older than horizon and reports whether any remain.
func (r *stampRing) within(now time.Time, horizon time.Duration) bool {
	kept := r.stamps[:0]
	for _, t := range r.stamps {
		if now.Sub(t) < horizon {
			kept = append(kept, t)
		}
	}
	r.stamps = kept
	return len(kept) > 0
}

// MemSignatureStore bounds memory twice over: at most capacity signatures
// (LRU, expiring ttl after their last record) and at most perKey timestamps
// per signature.
type MemSignatureStore struct {
	mu      sync.Mutex
	perKey  int
	records *expirable.LRU[string, *stampRing]
}

// NewMemSignatureStore creates an in-memory store. ttl should be at least the
// longest horizon it serves.
func NewMemSignatureStore(capacity int, ttl time.Duration, perKey int) *MemSignatureStore {
	if perKey < 1 {
		perKey = 1
	}
	return &MemSignatureStore{
		perKey:  perKey,
		records: expirable.NewLRU[string, *stampRing](capacity, nil, ttl),
	}
}

var _ SignatureStore = (*MemSignatureStore)(nil)

func (s *MemSignatureStore) Record(_ context.Context, key string, horizon time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.records.Get(key)
	if !ok {
		ring = &stampRing{size: s.perKey}
	}
	dup := ring.within(now, horizon)
	ring.push(now)
	s.records.Add(key, ring)
	return dup, nil
}

// Len returns the number of signatures currently held.
func (s *MemSignatureStore) Len() int {
	return s.records.Len()
}
