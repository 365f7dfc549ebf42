package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backy/backend/internal/model"
)

// PgAuditRepository is the PostgreSQL implementation of AuditRepository.
type PgAuditRepository struct {
	pool *pgxpool.Pool
}

// NewPgAuditRepository creates a PgAuditRepository backed by the given pool.
func NewPgAuditRepository(pool *pgxpool.Pool) *PgAuditRepository {
	return &PgAuditRepository{pool: pool}
}

var _ AuditRepository = (*PgAuditRepository)(nil)

func (r *PgAuditRepository) Append(ctx context.Context, ev *model.AuditEvent) error {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(ev.Metadata); err != nil {
			return err
		}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO audit_events
		   (site_id, kind, form_id, submission_id, contact_id, comment_id, status, status_code, error, request_id, metadata)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7,
		         NULLIF($8, 0), NULLIF($9, ''), NULLIF($10, ''), $11)
		 RETURNING id, created_at`,
		ev.SiteID, ev.Kind, ev.FormID, ev.SubmissionID, ev.ContactID, ev.CommentID, ev.Status,
		ev.StatusCode, ev.Error, ev.RequestID, metadata,
	).Scan(&ev.ID, &ev.CreatedAt)
}

func (r *PgAuditRepository) List(ctx context.Context, opts model.AuditListOptions) ([]*model.AuditEvent, error) {
	var f filter
	f.add("site_id = ?", opts.SiteID)
	if opts.Kind != "" {
		f.add("kind = ?", opts.Kind)
	}
	query := `SELECT id, site_id, kind, COALESCE(form_id, ''), COALESCE(submission_id, ''),
	                 COALESCE(contact_id, ''), COALESCE(comment_id, ''), status, COALESCE(status_code, 0),
	                 COALESCE(error, ''), COALESCE(request_id, ''), metadata, created_at
	          FROM audit_events` + f.where() +
		` ORDER BY created_at DESC, id DESC` + f.page(opts.Limit, opts.Offset)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.SiteID, &ev.Kind, &ev.FormID, &ev.SubmissionID,
			&ev.ContactID, &ev.CommentID, &ev.Status, &ev.StatusCode,
			&ev.Error, &ev.RequestID, &metadata, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}
