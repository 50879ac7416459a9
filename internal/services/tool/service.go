package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toolhive/api/internal/auth"
)

var (
	// ErrToolNotFound is returned when a tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrSlugTaken is returned when creating a tool with an existing slug.
	ErrSlugTaken = errors.New("tool slug is already in use")
)

// Tool is a row from the tools registry.
type Tool struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	Description string
	Enabled     bool
	MinRole     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grant is an explicit per-user tool grant that bypasses the role gate.
type Grant struct {
	UserID    uuid.UUID
	ToolID    uuid.UUID
	GrantedBy *uuid.UUID
	CreatedAt time.Time
}

// Service manages the tool registry and per-user access.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a tool service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, logger: logger}
}

const toolColumns = `id, slug, name, description, enabled, min_role, created_at, updated_at`

// List returns all tools ordered by name.
func (s *Service) List(ctx context.Context) ([]*Tool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+toolColumns+` FROM tools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying tools: %w", err)
	}
	defer rows.Close()

	var tools []*Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, rows.Err()
}

// ListEnabled returns enabled tools a role can use without a grant.
func (s *Service) ListEnabled(ctx context.Context, role string) ([]*Tool, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var tools []*Tool
	for _, t := range all {
		if t.Enabled && auth.RoleAtLeast(role, t.MinRole) {
			tools = append(tools, t)
		}
	}
	return tools, nil
}

// GetBySlug fetches a tool by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Tool, error) {
	return scanTool(s.pool.QueryRow(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE slug = $1`, slug))
}

// GetByID fetches a tool by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Tool, error) {
	return scanTool(s.pool.QueryRow(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE id = $1`, id))
}

// Create registers a new tool.
func (s *Service) Create(ctx context.Context, slug, name, description, minRole string) (*Tool, error) {
	if !auth.ValidRole(minRole) {
		return nil, fmt.Errorf("invalid min role %q", minRole)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tools WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking slug: %w", err)
	}
	if exists {
		return nil, ErrSlugTaken
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tools (id, slug, name, description, enabled, min_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $6, $6)
	`, id, slug, name, description, minRole, now)
	if err != nil {
		return nil, fmt.Errorf("inserting tool: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Update changes a tool's name, description, and minimum role.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, description, minRole string) (*Tool, error) {
	if !auth.ValidRole(minRole) {
		return nil, fmt.Errorf("invalid min role %q", minRole)
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE tools SET name = $1, description = $2, min_role = $3, updated_at = $4 WHERE id = $5
	`, name, description, minRole, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating tool: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrToolNotFound
	}

	return s.GetByID(ctx, id)
}

// SetEnabled toggles a tool on or off globally.
func (s *Service) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE tools SET enabled = $1, updated_at = $2 WHERE id = $3
	`, enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("toggling tool: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrToolNotFound
	}
	return nil
}

// CanAccess reports whether a user may use the tool with the given slug.
// A disabled tool is unusable for everyone; otherwise access requires the
// user's role to meet the tool's minimum role, or an explicit grant.
func (s *Service) CanAccess(ctx context.Context, userID uuid.UUID, role, slug string) (bool, error) {
	tool, err := s.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return false, nil
		}
		return false, err
	}

	if !tool.Enabled {
		return false, nil
	}

	if auth.RoleAtLeast(role, tool.MinRole) {
		return true, nil
	}

	var granted bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_tools WHERE user_id = $1 AND tool_id = $2)
	`, userID, tool.ID).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("checking tool grant: %w", err)
	}

	return granted, nil
}

// GrantAccess gives a user explicit access to a tool.
func (s *Service) GrantAccess(ctx context.Context, userID, toolID, grantedBy uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_tools (user_id, tool_id, granted_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, tool_id) DO NOTHING
	`, userID, toolID, grantedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("granting tool access: %w", err)
	}

	s.logger.Info("tool access granted",
		slog.String("user_id", userID.String()),
		slog.String("tool_id", toolID.String()),
	)
	return nil
}

// RevokeAccess removes a user's explicit tool grant.
func (s *Service) RevokeAccess(ctx context.Context, userID, toolID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM user_tools WHERE user_id = $1 AND tool_id = $2
	`, userID, toolID)
	if err != nil {
		return fmt.Errorf("revoking tool access: %w", err)
	}
	return nil
}

// ListGrants returns the explicit grants for a tool.
func (s *Service) ListGrants(ctx context.Context, toolID uuid.UUID) ([]*Grant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, tool_id, granted_by, created_at
		FROM user_tools WHERE tool_id = $1 ORDER BY created_at DESC
	`, toolID)
	if err != nil {
		return nil, fmt.Errorf("querying tool grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		g := &Grant{}
		if err := rows.Scan(&g.UserID, &g.ToolID, &g.GrantedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func scanTool(row pgx.Row) (*Tool, error) {
	tool := &Tool{}
	err := row.Scan(
		&tool.ID,
		&tool.Slug,
		&tool.Name,
		&tool.Description,
		&tool.Enabled,
		&tool.MinRole,
		&tool.CreatedAt,
		&tool.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrToolNotFound
		}
		return nil, fmt.Errorf("scanning tool: %w", err)
	}
	return tool, nil
}
