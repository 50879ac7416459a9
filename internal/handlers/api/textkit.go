package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/toolhive/api/internal/middleware"
	"github.com/toolhive/api/internal/services/textkit"
)

const maxTextLength = 1 << 20 // 1 MiB of text is plenty for a counter

// TextkitHandler serves the character counter and timestamp converter tools.
type TextkitHandler struct {
	tools  ToolChecker
	logger *slog.Logger
}

// NewTextkitHandler creates a textkit handler.
func NewTextkitHandler(tools ToolChecker, logger *slog.Logger) *TextkitHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextkitHandler{tools: tools, logger: logger}
}

// RegisterRoutes registers textkit routes on the given mux.
func (h *TextkitHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/tools/char-counter", h.CountText)
	mux.HandleFunc("POST /api/v1/tools/timestamp-converter", h.ConvertTimestamp)
}

func (h *TextkitHandler) authorize(w http.ResponseWriter, r *http.Request, slug string) bool {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication required")
		return false
	}
	role, _ := middleware.RoleFromContext(r.Context())

	allowed, err := h.tools.CanAccess(r.Context(), userID, role, slug)
	if err != nil {
		h.logger.Error("tool access check failed", "tool", slug, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if !allowed {
		errorJSON(w, http.StatusForbidden, "tool not available for this account")
		return false
	}
	return true
}

// CountText handles POST /api/v1/tools/char-counter.
func (h *TextkitHandler) CountText(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "char-counter") {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Text) > maxTextLength {
		errorJSON(w, http.StatusRequestEntityTooLarge, "text too large")
		return
	}

	writeJSON(w, http.StatusOK, textkit.Analyze(req.Text))
}

// ConvertTimestamp handles POST /api/v1/tools/timestamp-converter.
// The request carries either a unix value or a date string, not both.
func (h *TextkitHandler) ConvertTimestamp(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "timestamp-converter") {
		return
	}

	var req struct {
		Unix *int64 `json:"unix,omitempty"`
		Date string `json:"date,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case req.Unix != nil && req.Date != "":
		errorJSON(w, http.StatusBadRequest, "provide either unix or date, not both")
	case req.Unix != nil:
		writeJSON(w, http.StatusOK, textkit.FromUnix(*req.Unix))
	case req.Date != "":
		info, err := textkit.FromString(req.Date)
		if err != nil {
			if errors.Is(err, textkit.ErrUnparsableTime) {
				errorJSON(w, http.StatusBadRequest, "unrecognized date format")
				return
			}
			h.logger.Error("timestamp conversion failed", "error", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, info)
	default:
		errorJSON(w, http.StatusBadRequest, "unix or date is required")
	}
}
