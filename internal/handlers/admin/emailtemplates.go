package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/middleware"
	"github.com/toolhive/api/internal/services/emailtemplate"
)

// TemplateHandler handles email template management.
type TemplateHandler struct {
	templateSvc *emailtemplate.Service
	authSvc     *auth.Service
	logger      *slog.Logger
}

// NewTemplateHandler creates a template handler.
func NewTemplateHandler(templateSvc *emailtemplate.Service, authSvc *auth.Service, logger *slog.Logger) *TemplateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateHandler{templateSvc: templateSvc, authSvc: authSvc, logger: logger}
}

// RegisterRoutes registers template routes on the given mux.
func (h *TemplateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/email-templates", h.List)
	mux.HandleFunc("POST /admin/email-templates", h.Create)
	mux.HandleFunc("PATCH /admin/email-templates/{id}", h.Update)
	mux.HandleFunc("DELETE /admin/email-templates/{id}", h.Delete)
	mux.HandleFunc("POST /admin/email-templates/{id}/preview", h.Preview)
}

type templateJSON struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTemplateJSON(t *emailtemplate.Template) templateJSON {
	return templateJSON{ID: t.ID, Slug: t.Slug, Subject: t.Subject, Body: t.Body, UpdatedAt: t.UpdatedAt}
}

// List handles GET /admin/email-templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateSvc.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]templateJSON, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

// Create handles POST /admin/email-templates.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug    string `json:"slug"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Slug = strings.TrimSpace(req.Slug)
	if !slugPattern.MatchString(req.Slug) {
		errorJSON(w, http.StatusBadRequest, "slug must be lowercase letters, digits, and dashes")
		return
	}
	if req.Subject == "" {
		errorJSON(w, http.StatusBadRequest, "subject is required")
		return
	}

	created, err := h.templateSvc.Create(r.Context(), req.Slug, req.Subject, req.Body)
	if err != nil {
		if errors.Is(err, emailtemplate.ErrSlugTaken) {
			errorJSON(w, http.StatusConflict, "slug is already in use")
			return
		}
		h.logger.Error("failed to create template", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "email_template_created", created.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"template": toTemplateJSON(created)})
}

// Update handles PATCH /admin/email-templates/{id}.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid template ID")
		return
	}

	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Subject == "" {
		errorJSON(w, http.StatusBadRequest, "subject is required")
		return
	}

	updated, err := h.templateSvc.Update(r.Context(), id, req.Subject, req.Body)
	if err != nil {
		if errors.Is(err, emailtemplate.ErrTemplateNotFound) {
			errorJSON(w, http.StatusNotFound, "template not found")
			return
		}
		h.logger.Error("failed to update template", "error", err, "template_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "email_template_updated", id)
	writeJSON(w, http.StatusOK, map[string]any{"template": toTemplateJSON(updated)})
}

// Delete handles DELETE /admin/email-templates/{id}.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid template ID")
		return
	}

	if err := h.templateSvc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, emailtemplate.ErrTemplateNotFound) {
			errorJSON(w, http.StatusNotFound, "template not found")
			return
		}
		h.logger.Error("failed to delete template", "error", err, "template_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "email_template_deleted", id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Preview handles POST /admin/email-templates/{id}/preview, rendering the
// template with caller-supplied sample variables.
func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid template ID")
		return
	}

	var req struct {
		Vars map[string]string `json:"vars"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl, err := h.templateSvc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, emailtemplate.ErrTemplateNotFound) {
			errorJSON(w, http.StatusNotFound, "template not found")
			return
		}
		h.logger.Error("failed to get template", "error", err, "template_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	rendered := emailtemplate.Render(tmpl, req.Vars)
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": rendered.Subject,
		"body":    rendered.Body,
	})
}

func (h *TemplateHandler) audit(r *http.Request, action string, target uuid.UUID) {
	if actorID, ok := middleware.UserFromContext(r.Context()); ok {
		h.authSvc.AuditLog(r.Context(), actorID, action, "email_template:"+target.String(), "")
	}
}
