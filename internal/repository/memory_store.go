package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backy/backend/internal/model"
)

// MemoryStore is an in-memory backing for every repository. It is used when
// no DATABASE_URL is configured and in tests. Records are kept in insertion
// order; reads return copies.
type MemoryStore struct {
	mu          sync.RWMutex
	sites       map[string]model.Site
	forms       map[string]model.Form
	submissions []*model.FormSubmission
	comments    []*model.Comment
	contacts    []*model.Contact
	events      []*model.AuditEvent
	now         func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sites: make(map[string]model.Site),
		forms: make(map[string]model.Form),
		now:   time.Now,
	}
}

// PutSite inserts or replaces a site definition.
func (m *MemoryStore) PutSite(s model.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[s.ID] = s
}

// PutForm inserts or replaces a form definition.
func (m *MemoryStore) PutForm(f model.Form) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Fields = slices.Clone(f.Fields)
	m.forms[f.SiteID+"/"+f.ID] = f
}

func (m *MemoryStore) Sites() SiteRepository             { return memSites{m} }
func (m *MemoryStore) Forms() FormRepository             { return memForms{m} }
func (m *MemoryStore) Submissions() SubmissionRepository { return memSubmissions{m} }
func (m *MemoryStore) Comments() CommentRepository       { return memComments{m} }
func (m *MemoryStore) Contacts() ContactRepository       { return memContacts{m} }
func (m *MemoryStore) Audit() AuditRepository            { return memAudit{m} }

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// window applies limit/offset to n items, returning the [lo, hi) range.
func window(n, limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	lo := min(offset, n)
	hi := min(lo+limit, n)
	return lo, hi
}

type memSites struct{ *MemoryStore }

func (m memSites) FindByID(_ context.Context, id string) (*model.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

type memForms struct{ *MemoryStore }

func (m memForms) FindByID(_ context.Context, siteID, formID string) (*model.Form, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.forms[siteID+"/"+formID]
	if !ok {
		return nil, ErrNotFound
	}
	f.Fields = slices.Clone(f.Fields)
	return &f, nil
}

type memSubmissions struct{ *MemoryStore }

func cloneSubmission(s *model.FormSubmission) *model.FormSubmission {
	c := *s
	c.Values = maps.Clone(s.Values)
	c.SpamFlags = slices.Clone(s.SpamFlags)
	return &c
}

func (m memSubmissions) Create(_ context.Context, s *model.FormSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.NewString()
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	m.submissions = append(m.submissions, cloneSubmission(s))
	return nil
}

func (m memSubmissions) FindByID(_ context.Context, siteID, id string) (*model.FormSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.submissions {
		if s.SiteID == siteID && s.ID == id {
			return cloneSubmission(s), nil
		}
	}
	return nil, ErrNotFound
}

func (m memSubmissions) UpdateStatus(_ context.Context, s *model.FormSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.submissions {
		if existing.SiteID == s.SiteID && existing.ID == s.ID {
			existing.Status = s.Status
			existing.ReviewedBy = s.ReviewedBy
			existing.ReviewedAt = s.ReviewedAt
			existing.UpdatedAt = s.UpdatedAt
			return nil
		}
	}
	return ErrNotFound
}

func (m memSubmissions) List(_ context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*model.FormSubmission
	for i := len(m.submissions) - 1; i >= 0; i-- {
		s := m.submissions[i]
		if s.SiteID != opts.SiteID {
			continue
		}
		if opts.FormID != "" && s.FormID != opts.FormID {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		matched = append(matched, s)
	}
	lo, hi := window(len(matched), opts.Limit, opts.Offset)
	out := make([]*model.FormSubmission, 0, hi-lo)
	for _, s := range matched[lo:hi] {
		out = append(out, cloneSubmission(s))
	}
	return out, nil
}

type memComments struct{ *MemoryStore }

func cloneComment(c *model.Comment) *model.Comment {
	cp := *c
	cp.SpamFlags = slices.Clone(c.SpamFlags)
	cp.ReportReasons = slices.Clone(c.ReportReasons)
	return &cp
}

func (m memComments) Create(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	m.comments = append(m.comments, cloneComment(c))
	return nil
}

func (m memComments) FindByID(_ context.Context, siteID, id string) (*model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.comments {
		if c.SiteID == siteID && c.ID == id {
			return cloneComment(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m memComments) Update(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.comments {
		if existing.SiteID == c.SiteID && existing.ID == c.ID {
			updated := cloneComment(c)
			updated.CreatedAt = existing.CreatedAt
			m.comments[i] = updated
			return nil
		}
	}
	return ErrNotFound
}

func (m memComments) List(_ context.Context, opts model.CommentListOptions) ([]*model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*model.Comment
	for _, c := range m.comments {
		if c.SiteID != opts.SiteID {
			continue
		}
		if opts.TargetType != "" && c.TargetType != opts.TargetType {
			continue
		}
		if opts.TargetID != "" && c.TargetID != opts.TargetID {
			continue
		}
		if opts.Status != "" && c.Status != opts.Status {
			continue
		}
		matched = append(matched, c)
	}
	lo, hi := window(len(matched), opts.Limit, opts.Offset)
	out := make([]*model.Comment, 0, hi-lo)
	for _, c := range matched[lo:hi] {
		out = append(out, cloneComment(c))
	}
	return out, nil
}

type memContacts struct{ *MemoryStore }

func (m memContacts) Create(_ context.Context, c *model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = m.now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.contacts = append(m.contacts, &cp)
	return nil
}

func (m memContacts) Update(_ context.Context, c *model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contacts {
		if existing.SiteID == c.SiteID && existing.ID == c.ID {
			existing.Name = c.Name
			existing.Phone = c.Phone
			existing.Notes = c.Notes
			existing.SourceSubmissionID = c.SourceSubmissionID
			existing.Status = c.Status
			existing.UpdatedAt = c.UpdatedAt
			return nil
		}
	}
	return ErrNotFound
}

func (m memContacts) FindByID(_ context.Context, siteID, id string) (*model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.contacts {
		if c.SiteID == siteID && c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m memContacts) FindByEmail(_ context.Context, siteID, formID, email string) (*model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.contacts {
		if c.SiteID == siteID && c.FormID == formID && strings.ToLower(strings.TrimSpace(c.Email)) == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m memContacts) List(_ context.Context, opts model.ContactListOptions) ([]*model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := strings.TrimSpace(opts.Status)
	var matched []*model.Contact
	for i := len(m.contacts) - 1; i >= 0; i-- {
		c := m.contacts[i]
		if c.SiteID != opts.SiteID {
			continue
		}
		if opts.FormID != "" && c.FormID != opts.FormID {
			continue
		}
		if status != "" && status != "all" && string(c.Status) != status {
			continue
		}
		matched = append(matched, c)
	}
	lo, hi := window(len(matched), opts.Limit, opts.Offset)
	out := make([]*model.Contact, 0, hi-lo)
	for _, c := range matched[lo:hi] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type memAudit struct{ *MemoryStore }

func (m memAudit) Append(_ context.Context, ev *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = uuid.NewString()
	ev.CreatedAt = m.now()
	cp := *ev
	cp.Metadata = maps.Clone(ev.Metadata)
	m.events = append(m.events, &cp)
	return nil
}

func (m memAudit) List(_ context.Context, opts model.AuditListOptions) ([]*model.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*model.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if ev.SiteID != opts.SiteID {
			continue
		}
		if opts.Kind != "" && ev.Kind != opts.Kind {
			continue
		}
		matched = append(matched, ev)
	}
	lo, hi := window(len(matched), opts.Limit, opts.Offset)
	out := make([]*model.AuditEvent, 0, hi-lo)
	for _, ev := range matched[lo:hi] {
		cp := *ev
		cp.Metadata = maps.Clone(ev.Metadata)
		out = append(out, &cp)
	}
	return out, nil
}
