package moderation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/backy/backend/internal/model"
)

// BlocklistStore persists blocklist entries. Get returns nil, nil when absent.
type BlocklistStore interface {
	Get(ctx context.Context, siteID string, kind model.IdentityKind, value string) (*model.BlocklistEntry, error)
	Put(ctx context.Context, entry *model.BlocklistEntry) error
	List(ctx context.Context, siteID string) ([]*model.BlocklistEntry, error)
}

// Blocklist is the per-site registry of blocked email and IP identities.
type Blocklist struct {
	store BlocklistStore
	now   func() time.Time
}

// NewBlocklist creates a Blocklist backed by store.
func NewBlocklist(store BlocklistStore) *Blocklist {
	return &Blocklist{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// IsBlocked checks the email first, then the IP hash.
func (b *Blocklist) IsBlocked(ctx context.Context, siteID, email, ipHash string) (*model.BlocklistEntry, error) {
	if e := NormalizeEmail(email); e != "" {
		entry, err := b.store.Get(ctx, siteID, model.IdentityEmail, e)
		if err != nil || entry != nil {
			return entry, err
		}
	}
	if ip := strings.TrimSpace(ipHash); ip != "" {
		return b.store.Get(ctx, siteID, model.IdentityIP, ip)
	}
	return nil, nil
}

// Block stores (or overwrites) one entry per non-empty identity and returns them.
func (b *Blocklist) Block(ctx context.Context, siteID, email, ipHash, reason, actor, requestID string) ([]*model.BlocklistEntry, error) {
	var entries []*model.BlocklistEntry
	now := b.now()
	add := func(kind model.IdentityKind, value string) error {
		if value == "" {
			return nil
		}
		entry := &model.BlocklistEntry{
			SiteID:    siteID,
			Kind:      kind,
			Value:     value,
			Reason:    reason,
			Actor:     actor,
			RequestID: requestID,
			CreatedAt: now,
		}
		if err := b.store.Put(ctx, entry); err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	}
	if err := add(model.IdentityEmail, NormalizeEmail(email)); err != nil {
		return nil, err
	}
	if err := add(model.IdentityIP, strings.TrimSpace(ipHash)); err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns the site's entries, newest first.
func (b *Blocklist) List(ctx context.Context, siteID string) ([]*model.BlocklistEntry, error) {
	return b.store.List(ctx, siteID)
}

// MemBlocklistStore keeps entries for the lifetime of the process.
type MemBlocklistStore struct {
	entries *xsync.MapOf[string, model.BlocklistEntry]
}

// NewMemBlocklistStore creates an empty in-memory store.
func NewMemBlocklistStore() *MemBlocklistStore {
	return &MemBlocklistStore{entries: xsync.NewMapOf[string, model.BlocklistEntry]()}
}

var _ BlocklistStore = (*MemBlocklistStore)(nil)

func blocklistKey(siteID string, kind model.IdentityKind, value string) string {
	return siteID + "/" + string(kind) + "/" + value
}

func (s *MemBlocklistStore) Get(_ context.Context, siteID string, kind model.IdentityKind, value string) (*model.BlocklistEntry, error) {
	v, ok := s.entries.Load(blocklistKey(siteID, kind, value))
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *MemBlocklistStore) Put(_ context.Context, entry *model.BlocklistEntry) error {
	s.entries.Store(blocklistKey(entry.SiteID, entry.Kind, entry.Value), *entry)
	return nil
}

func (s *MemBlocklistStore) List(_ context.Context, siteID string) ([]*model.BlocklistEntry, error) {
	var out []*model.BlocklistEntry
	s.entries.Range(func(_ string, v model.BlocklistEntry) bool {
		if v.SiteID == siteID {
			entry := v
			out = append(out, &entry)
		}
		return true
	})
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []*model.BlocklistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
