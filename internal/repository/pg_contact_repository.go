package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backy/backend/internal/model"
)

// PgContactRepository is the PostgreSQL implementation of ContactRepository.
type PgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository creates a PgContactRepository backed by the given pool.
func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

// Ensure PgContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*PgContactRepository)(nil)

const contactColumns = `id, site_id, form_id, COALESCE(name, ''), COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(notes, ''), source_submission_id, status, created_at, updated_at`

func scanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(&c.ID, &c.SiteID, &c.FormID, &c.Name, &c.Email,
		&c.Phone, &c.Notes, &c.SourceSubmissionID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new contacts row and populates c.ID and timestamps
// from the database RETURNING clause.
func (r *PgContactRepository) Create(ctx context.Context, c *model.Contact) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO contacts (site_id, form_id, name, email, phone, notes, source_submission_id, status)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		 RETURNING id, created_at, updated_at`,
		c.SiteID, c.FormID, c.Name, c.Email, c.Phone, c.Notes, c.SourceSubmissionID, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PgContactRepository) Update(ctx context.Context, c *model.Contact) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE contacts
		 SET name = NULLIF($3, ''), phone = NULLIF($4, ''), notes = NULLIF($5, ''),
		     source_submission_id = $6, status = $7, updated_at = $8
		 WHERE site_id = $1 AND id = $2`,
		c.SiteID, c.ID, c.Name, c.Phone, c.Notes, c.SourceSubmissionID, c.Status, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgContactRepository) FindByID(ctx context.Context, siteID, id string) (*model.Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE site_id = $1 AND id = $2`, siteID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// FindByEmail compares against lower(trim(email)); the caller passes the
// normalized address.
func (r *PgContactRepository) FindByEmail(ctx context.Context, siteID, formID, email string) (*model.Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE site_id = $1 AND form_id = $2 AND lower(trim(email)) = $3
		 ORDER BY created_at ASC LIMIT 1`, siteID, formID, email))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// List returns contacts filtered by form and status, newest first.
// Status "" or "all" returns all contacts.
func (r *PgContactRepository) List(ctx context.Context, opts model.ContactListOptions) ([]*model.Contact, error) {
	var f filter
	f.add("site_id = ?", opts.SiteID)
	if opts.FormID != "" {
		f.add("form_id = ?", opts.FormID)
	}
	if status := strings.TrimSpace(opts.Status); status != "" && status != "all" {
		f.add("status = ?", status)
	}
	query := `SELECT ` + contactColumns + ` FROM contacts` + f.where() +
		` ORDER BY created_at DESC` + f.page(opts.Limit, opts.Offset)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
