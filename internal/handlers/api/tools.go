package api

import (
	"log/slog"
	"net/http"

	"github.com/toolhive/api/internal/middleware"
	"github.com/toolhive/api/internal/services/tool"
)

// ToolsHandler lists the tools available to the authenticated user.
type ToolsHandler struct {
	toolSvc *tool.Service
	logger  *slog.Logger
}

// NewToolsHandler creates a tools handler.
func NewToolsHandler(toolSvc *tool.Service, logger *slog.Logger) *ToolsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolsHandler{toolSvc: toolSvc, logger: logger}
}

// RegisterRoutes registers tool listing routes on the given mux.
func (h *ToolsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/tools", h.List)
}

// List handles GET /api/v1/tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserFromContext(r.Context()); !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication required")
		return
	}
	role, _ := middleware.RoleFromContext(r.Context())

	tools, err := h.toolSvc.ListEnabled(r.Context(), role)
	if err != nil {
		h.logger.Error("listing tools failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	type toolJSON struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	out := make([]toolJSON, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolJSON{Slug: t.Slug, Name: t.Name, Description: t.Description})
	}

	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}
