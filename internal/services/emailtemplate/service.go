package emailtemplate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrTemplateNotFound is returned when a template does not exist.
	ErrTemplateNotFound = errors.New("email template not found")

	// ErrSlugTaken is returned when creating a template with an existing slug.
	ErrSlugTaken = errors.New("template slug is already in use")
)

// Template is a row from the email_templates table. Subject and body may
// contain {{placeholder}} markers filled in at render time.
type Template struct {
	ID        uuid.UUID
	Slug      string
	Subject   string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rendered is a template with its placeholders substituted.
type Rendered struct {
	Subject string
	Body    string
}

// Service manages email templates.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates an email template service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

const templateColumns = `id, slug, subject, body, created_at, updated_at`

// List returns all templates ordered by slug.
func (s *Service) List(ctx context.Context) ([]*Template, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM email_templates ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// GetBySlug fetches a template by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Template, error) {
	return scanTemplate(s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE slug = $1`, slug))
}

// GetByID fetches a template by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return scanTemplate(s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE id = $1`, id))
}

// Create adds a new template.
func (s *Service) Create(ctx context.Context, slug, subject, body string) (*Template, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM email_templates WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking slug: %w", err)
	}
	if exists {
		return nil, ErrSlugTaken
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_templates (id, slug, subject, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id, slug, subject, body, now)
	if err != nil {
		return nil, fmt.Errorf("inserting template: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Update changes a template's subject and body.
func (s *Service) Update(ctx context.Context, id uuid.UUID, subject, body string) (*Template, error) {
	result, err := s.pool.Exec(ctx, `
		UPDATE email_templates SET subject = $1, body = $2, updated_at = $3 WHERE id = $4
	`, subject, body, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrTemplateNotFound
	}

	return s.GetByID(ctx, id)
}

// Delete removes a template.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// Render substitutes {{key}} markers in the template's subject and body.
// Unknown markers are left as-is so missing data is visible in the output.
func Render(tmpl *Template, vars map[string]string) *Rendered {
	return &Rendered{
		Subject: substitute(tmpl.Subject, vars),
		Body:    substitute(tmpl.Body, vars),
	}
}

func substitute(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

func scanTemplate(row pgx.Row) (*Template, error) {
	tmpl := &Template{}
	err := row.Scan(
		&tmpl.ID,
		&tmpl.Slug,
		&tmpl.Subject,
		&tmpl.Body,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("scanning template: %w", err)
	}
	return tmpl, nil
}
