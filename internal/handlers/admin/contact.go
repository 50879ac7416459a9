package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/toolhive/api/internal/services/contact"
)

// ContactHandler lets admins review contact-form submissions.
type ContactHandler struct {
	contactSvc *contact.Service
	logger     *slog.Logger
}

// NewContactHandler creates an admin contact handler.
func NewContactHandler(contactSvc *contact.Service, logger *slog.Logger) *ContactHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactHandler{contactSvc: contactSvc, logger: logger}
}

// RegisterRoutes registers contact review routes on the given mux.
func (h *ContactHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/contact-messages", h.List)
	mux.HandleFunc("POST /admin/contact-messages/{id}/handled", h.MarkHandled)
}

// List handles GET /admin/contact-messages. ?unhandled=true filters out
// messages already dealt with.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	unhandledOnly := r.URL.Query().Get("unhandled") == "true"

	messages, err := h.contactSvc.List(r.Context(), unhandledOnly)
	if err != nil {
		h.logger.Error("failed to list contact messages", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	type messageJSON struct {
		ID        uuid.UUID `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Subject   string    `json:"subject"`
		Body      string    `json:"body"`
		Handled   bool      `json:"handled"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageJSON{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Subject:   m.Subject,
			Body:      m.Body,
			Handled:   m.Handled,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// MarkHandled handles POST /admin/contact-messages/{id}/handled.
func (h *ContactHandler) MarkHandled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid message ID")
		return
	}

	if err := h.contactSvc.MarkHandled(r.Context(), id); err != nil {
		if errors.Is(err, contact.ErrMessageNotFound) {
			errorJSON(w, http.StatusNotFound, "message not found")
			return
		}
		h.logger.Error("failed to mark message handled", "error", err, "message_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
