package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backy/backend/internal/model"
)

// PgSubmissionRepository is the PostgreSQL implementation of SubmissionRepository.
type PgSubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubmissionRepository creates a PgSubmissionRepository backed by the given pool.
func NewPgSubmissionRepository(pool *pgxpool.Pool) *PgSubmissionRepository {
	return &PgSubmissionRepository{pool: pool}
}

var _ SubmissionRepository = (*PgSubmissionRepository)(nil)

const submissionColumns = `id, site_id, form_id, COALESCE(page_id, ''), COALESCE(post_id, ''), "values",
	COALESCE(ip_hash, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), status, spam_flags,
	COALESCE(reviewed_by, ''), reviewed_at, created_at, updated_at`

func scanSubmission(row pgx.Row) (*model.FormSubmission, error) {
	var s model.FormSubmission
	var values []byte
	if err := row.Scan(&s.ID, &s.SiteID, &s.FormID, &s.PageID, &s.PostID, &values,
		&s.IPHash, &s.UserAgent, &s.RequestID, &s.Status, &s.SpamFlags,
		&s.ReviewedBy, &s.ReviewedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(values, &s.Values); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a submission and populates s.ID and timestamps from RETURNING.
func (r *PgSubmissionRepository) Create(ctx context.Context, s *model.FormSubmission) error {
	values, err := json.Marshal(s.Values)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO form_submissions
		   (site_id, form_id, page_id, post_id, "values", ip_hash, user_agent, request_id, status, spam_flags)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)
		 RETURNING id, created_at, updated_at`,
		s.SiteID, s.FormID, s.PageID, s.PostID, values, s.IPHash, s.UserAgent, s.RequestID, s.Status, nonNil(s.SpamFlags),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *PgSubmissionRepository) FindByID(ctx context.Context, siteID, id string) (*model.FormSubmission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM form_submissions WHERE site_id = $1 AND id = $2`, siteID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *PgSubmissionRepository) UpdateStatus(ctx context.Context, s *model.FormSubmission) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE form_submissions
		 SET status = $3, reviewed_by = NULLIF($4, ''), reviewed_at = $5, updated_at = $6
		 WHERE site_id = $1 AND id = $2`,
		s.SiteID, s.ID, s.Status, s.ReviewedBy, s.ReviewedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns submissions newest first.
func (r *PgSubmissionRepository) List(ctx context.Context, opts model.SubmissionListOptions) ([]*model.FormSubmission, error) {
	var f filter
	f.add("site_id = ?", opts.SiteID)
	if opts.FormID != "" {
		f.add("form_id = ?", opts.FormID)
	}
	if opts.Status != "" {
		f.add("status = ?", opts.Status)
	}
	query := `SELECT ` + submissionColumns + ` FROM form_submissions` + f.where() +
		` ORDER BY created_at DESC` + f.page(opts.Limit, opts.Offset)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.FormSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
