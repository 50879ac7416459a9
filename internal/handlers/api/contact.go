package api

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/toolhive/api/internal/services/contact"
)

// ContactHandler serves the public contact form endpoint.
type ContactHandler struct {
	contactSvc *contact.Service
	logger     *slog.Logger
}

// NewContactHandler creates a contact handler.
func NewContactHandler(contactSvc *contact.Service, logger *slog.Logger) *ContactHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactHandler{contactSvc: contactSvc, logger: logger}
}

// RegisterRoutes registers contact routes on the given mux.
func (h *ContactHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/contact", h.Submit)
}

// Submit handles POST /api/v1/contact. No authentication required.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Body = strings.TrimSpace(req.Body)

	if req.Name == "" || req.Body == "" {
		errorJSON(w, http.StatusBadRequest, "name and body are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		errorJSON(w, http.StatusBadRequest, "a valid email address is required")
		return
	}

	msg, err := h.contactSvc.Submit(r.Context(), req.Name, req.Email, req.Subject, req.Body)
	if err != nil {
		h.logger.Error("contact submission failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": msg.ID})
}
