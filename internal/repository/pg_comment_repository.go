package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backy/backend/internal/model"
)

// PgCommentRepository is the PostgreSQL implementation of CommentRepository.
type PgCommentRepository struct {
	pool *pgxpool.Pool
}

// NewPgCommentRepository creates a PgCommentRepository backed by the given pool.
func NewPgCommentRepository(pool *pgxpool.Pool) *PgCommentRepository {
	return &PgCommentRepository{pool: pool}
}

var _ CommentRepository = (*PgCommentRepository)(nil)

const commentColumns = `id, site_id, target_type, target_id, parent_id, author_name,
	COALESCE(author_email, ''), COALESCE(author_website, ''), COALESCE(ip_hash, ''),
	COALESCE(user_agent, ''), COALESCE(request_id, ''), content, status, spam_flags,
	report_count, report_reasons, COALESCE(block_reason, ''), COALESCE(blocked_by, ''), blocked_at,
	COALESCE(reviewed_by, ''), reviewed_at, created_at, updated_at`

func scanComment(row pgx.Row) (*model.Comment, error) {
	var c model.Comment
	var reasons []string
	if err := row.Scan(&c.ID, &c.SiteID, &c.TargetType, &c.TargetID, &c.ParentID, &c.AuthorName,
		&c.AuthorEmail, &c.AuthorWebsite, &c.IPHash,
		&c.UserAgent, &c.RequestID, &c.Content, &c.Status, &c.SpamFlags,
		&c.ReportCount, &reasons, &c.BlockReason, &c.BlockedBy, &c.BlockedAt,
		&c.ReviewedBy, &c.ReviewedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	for _, r := range reasons {
		c.ReportReasons = append(c.ReportReasons, model.ReportReason(r))
	}
	return &c, nil
}

func reasonStrings(reasons []model.ReportReason) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, string(r))
	}
	return out
}

// Create inserts a comment and populates c.ID and timestamps from RETURNING.
func (r *PgCommentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO comments
		   (site_id, target_type, target_id, parent_id, author_name, author_email, author_website,
		    ip_hash, user_agent, request_id, content, status, spam_flags, block_reason, blocked_by, blocked_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''),
		         NULLIF($10, ''), $11, $12, $13, NULLIF($14, ''), NULLIF($15, ''), $16)
		 RETURNING id, created_at, updated_at`,
		c.SiteID, c.TargetType, c.TargetID, c.ParentID, c.AuthorName, c.AuthorEmail, c.AuthorWebsite,
		c.IPHash, c.UserAgent, c.RequestID, c.Content, c.Status, nonNil(c.SpamFlags),
		c.BlockReason, c.BlockedBy, c.BlockedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PgCommentRepository) FindByID(ctx context.Context, siteID, id string) (*model.Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE site_id = $1 AND id = $2`, siteID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *PgCommentRepository) Update(ctx context.Context, c *model.Comment) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE comments
		 SET status = $3, report_count = $4, report_reasons = $5,
		     block_reason = NULLIF($6, ''), blocked_by = NULLIF($7, ''), blocked_at = $8,
		     reviewed_by = NULLIF($9, ''), reviewed_at = $10, updated_at = $11
		 WHERE site_id = $1 AND id = $2`,
		c.SiteID, c.ID, c.Status, c.ReportCount, reasonStrings(c.ReportReasons),
		c.BlockReason, c.BlockedBy, c.BlockedAt, c.ReviewedBy, c.ReviewedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns comments oldest first so threads read top-down.
func (r *PgCommentRepository) List(ctx context.Context, opts model.CommentListOptions) ([]*model.Comment, error) {
	var f filter
	f.add("site_id = ?", opts.SiteID)
	if opts.TargetType != "" {
		f.add("target_type = ?", opts.TargetType)
	}
	if opts.TargetID != "" {
		f.add("target_id = ?", opts.TargetID)
	}
	if opts.Status != "" {
		f.add("status = ?", opts.Status)
	}
	query := `SELECT ` + commentColumns + ` FROM comments` + f.where() +
		` ORDER BY created_at ASC` + f.page(opts.Limit, opts.Offset)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
