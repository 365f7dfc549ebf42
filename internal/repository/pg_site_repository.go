package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backy/backend/internal/model"
)

// PgSiteRepository is the PostgreSQL implementation of SiteRepository.
type PgSiteRepository struct {
	pool *pgxpool.Pool
}

// NewPgSiteRepository creates a PgSiteRepository backed by the given pool.
func NewPgSiteRepository(pool *pgxpool.Pool) *PgSiteRepository {
	return &PgSiteRepository{pool: pool}
}

var _ SiteRepository = (*PgSiteRepository)(nil)

func (r *PgSiteRepository) FindByID(ctx context.Context, id string) (*model.Site, error) {
	var s model.Site
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, comment_moderation, comment_honeypot, created_at, updated_at
		 FROM sites WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.CommentModeration, &s.CommentHoneypot, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// PgFormRepository is the PostgreSQL implementation of FormRepository.
type PgFormRepository struct {
	pool *pgxpool.Pool
}

// NewPgFormRepository creates a PgFormRepository backed by the given pool.
func NewPgFormRepository(pool *pgxpool.Pool) *PgFormRepository {
	return &PgFormRepository{pool: pool}
}

var _ FormRepository = (*PgFormRepository)(nil)

// FindByID loads a form; fields and contact_share are jsonb columns.
func (r *PgFormRepository) FindByID(ctx context.Context, siteID, formID string) (*model.Form, error) {
	var f model.Form
	var fields, share []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, site_id, name, fields, moderation_mode, enable_honeypot,
		        COALESCE(notification_webhook, ''), contact_share, is_active, created_at, updated_at
		 FROM forms WHERE site_id = $1 AND id = $2`, siteID, formID,
	).Scan(&f.ID, &f.SiteID, &f.Name, &fields, &f.ModerationMode, &f.EnableHoneypot,
		&f.NotificationWebhook, &share, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &f.Fields); err != nil {
			return nil, err
		}
	}
	if len(share) > 0 && string(share) != "null" {
		f.ContactShare = &model.ContactSharePolicy{}
		if err := json.Unmarshal(share, f.ContactShare); err != nil {
			return nil, err
		}
	}
	return &f, nil
}
