package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/middleware"
	"github.com/toolhive/api/internal/services/tool"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ToolHandler handles the admin tool registry and grant endpoints.
type ToolHandler struct {
	toolSvc *tool.Service
	authSvc *auth.Service
	logger  *slog.Logger
}

// NewToolHandler creates a tool handler.
func NewToolHandler(toolSvc *tool.Service, authSvc *auth.Service, logger *slog.Logger) *ToolHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolHandler{toolSvc: toolSvc, authSvc: authSvc, logger: logger}
}

// RegisterRoutes registers tool registry routes on the given mux.
func (h *ToolHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/tools", h.List)
	mux.HandleFunc("POST /admin/tools", h.Create)
	mux.HandleFunc("PATCH /admin/tools/{id}", h.Update)
	mux.HandleFunc("POST /admin/tools/{id}/toggle", h.Toggle)
	mux.HandleFunc("GET /admin/tools/{id}/grants", h.ListGrants)
	mux.HandleFunc("POST /admin/tools/{id}/grants", h.Grant)
	mux.HandleFunc("DELETE /admin/tools/{id}/grants/{userID}", h.Revoke)
}

type toolJSON struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	MinRole     string    `json:"min_role"`
	CreatedAt   time.Time `json:"created_at"`
}

func toToolJSON(t *tool.Tool) toolJSON {
	return toolJSON{
		ID:          t.ID,
		Slug:        t.Slug,
		Name:        t.Name,
		Description: t.Description,
		Enabled:     t.Enabled,
		MinRole:     t.MinRole,
		CreatedAt:   t.CreatedAt,
	}
}

// List handles GET /admin/tools.
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	tools, err := h.toolSvc.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list tools", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]toolJSON, 0, len(tools))
	for _, t := range tools {
		out = append(out, toToolJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// Create handles POST /admin/tools.
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Description string `json:"description"`
		MinRole     string `json:"min_role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Slug = strings.TrimSpace(req.Slug)
	req.Name = strings.TrimSpace(req.Name)
	if !slugPattern.MatchString(req.Slug) {
		errorJSON(w, http.StatusBadRequest, "slug must be lowercase letters, digits, and dashes")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}
	if !auth.ValidRole(req.MinRole) {
		errorJSON(w, http.StatusBadRequest, "invalid min_role")
		return
	}

	created, err := h.toolSvc.Create(r.Context(), req.Slug, req.Name, req.Description, req.MinRole)
	if err != nil {
		if errors.Is(err, tool.ErrSlugTaken) {
			errorJSON(w, http.StatusConflict, "slug is already in use")
			return
		}
		h.logger.Error("failed to create tool", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "tool_created", created.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"tool": toToolJSON(created)})
}

// Update handles PATCH /admin/tools/{id}.
func (h *ToolHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid tool ID")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		MinRole     string `json:"min_role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if !auth.ValidRole(req.MinRole) {
		errorJSON(w, http.StatusBadRequest, "invalid min_role")
		return
	}

	updated, err := h.toolSvc.Update(r.Context(), id, strings.TrimSpace(req.Name), req.Description, req.MinRole)
	if err != nil {
		if errors.Is(err, tool.ErrToolNotFound) {
			errorJSON(w, http.StatusNotFound, "tool not found")
			return
		}
		h.logger.Error("failed to update tool", "error", err, "tool_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "tool_updated", id)
	writeJSON(w, http.StatusOK, map[string]any{"tool": toToolJSON(updated)})
}

// Toggle handles POST /admin/tools/{id}/toggle.
func (h *ToolHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid tool ID")
		return
	}

	t, err := h.toolSvc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, tool.ErrToolNotFound) {
			errorJSON(w, http.StatusNotFound, "tool not found")
			return
		}
		h.logger.Error("failed to get tool", "error", err, "tool_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.toolSvc.SetEnabled(r.Context(), id, !t.Enabled); err != nil {
		h.logger.Error("failed to toggle tool", "error", err, "tool_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if t.Enabled {
		h.audit(r, "tool_disabled", id)
	} else {
		h.audit(r, "tool_enabled", id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": !t.Enabled})
}

// ListGrants handles GET /admin/tools/{id}/grants.
func (h *ToolHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid tool ID")
		return
	}

	grants, err := h.toolSvc.ListGrants(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list grants", "error", err, "tool_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	type grantJSON struct {
		UserID    uuid.UUID  `json:"user_id"`
		GrantedBy *uuid.UUID `json:"granted_by,omitempty"`
		CreatedAt time.Time  `json:"created_at"`
	}
	out := make([]grantJSON, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantJSON{UserID: g.UserID, GrantedBy: g.GrantedBy, CreatedAt: g.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

// Grant handles POST /admin/tools/{id}/grants.
func (h *ToolHandler) Grant(w http.ResponseWriter, r *http.Request) {
	toolID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid tool ID")
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	// Both sides must exist before recording the grant.
	if _, err := h.toolSvc.GetByID(r.Context(), toolID); err != nil {
		errorJSON(w, http.StatusNotFound, "tool not found")
		return
	}
	if _, err := h.authSvc.GetUserByID(r.Context(), req.UserID); err != nil {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}

	actorID, _ := middleware.UserFromContext(r.Context())
	if err := h.toolSvc.GrantAccess(r.Context(), req.UserID, toolID, actorID); err != nil {
		h.logger.Error("failed to grant access", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "tool_access_granted", toolID)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

// Revoke handles DELETE /admin/tools/{id}/grants/{userID}.
func (h *ToolHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	toolID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid tool ID")
		return
	}
	userID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.toolSvc.RevokeAccess(r.Context(), userID, toolID); err != nil {
		h.logger.Error("failed to revoke access", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "tool_access_revoked", toolID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *ToolHandler) audit(r *http.Request, action string, target uuid.UUID) {
	if actorID, ok := middleware.UserFromContext(r.Context()); ok {
		h.authSvc.AuditLog(r.Context(), actorID, action, "tool:"+target.String(), "")
	}
}
