package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/middleware"
)

// UserHandler handles admin user management endpoints.
type UserHandler struct {
	authSvc *auth.Service
	logger  *slog.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(authSvc *auth.Service, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{authSvc: authSvc, logger: logger}
}

// RegisterRoutes registers user management routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/users", h.List)
	mux.HandleFunc("POST /admin/users", h.Create)
	mux.HandleFunc("GET /admin/users/{id}", h.Get)
	mux.HandleFunc("PATCH /admin/users/{id}", h.Update)
	mux.HandleFunc("POST /admin/users/{id}/toggle-active", h.ToggleActive)
}

type adminUserJSON struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	TOTPEnabled bool       `json:"totp_enabled"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAdminUserJSON(u *auth.User) adminUserJSON {
	return adminUserJSON{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		IsActive:    u.IsActive,
		TOTPEnabled: u.TOTPEnabled,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// List handles GET /admin/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.authSvc.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]adminUserJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toAdminUserJSON(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// Get handles GET /admin/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	user, err := h.authSvc.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			errorJSON(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to get user", "error", err, "user_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toAdminUserJSON(user)})
}

// Create handles POST /admin/users. Creating admins and superadmins is
// restricted to superadmins.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if _, err := mail.ParseAddress(req.Email); err != nil {
		errorJSON(w, http.StatusBadRequest, "a valid email address is required")
		return
	}
	if len(req.Password) < 8 {
		errorJSON(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !auth.ValidRole(req.Role) {
		errorJSON(w, http.StatusBadRequest, "invalid role")
		return
	}

	if auth.RoleAtLeast(req.Role, auth.RoleAdmin) && !callerIsSuperadmin(r) {
		errorJSON(w, http.StatusForbidden, "only superadmins may create admin accounts")
		return
	}

	user, err := h.authSvc.CreateUser(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		h.logger.Error("failed to create user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "user_created", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": toAdminUserJSON(user)})
}

// Update handles PATCH /admin/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	if !auth.ValidRole(req.Role) {
		errorJSON(w, http.StatusBadRequest, "invalid role")
		return
	}
	if auth.RoleAtLeast(req.Role, auth.RoleAdmin) && !callerIsSuperadmin(r) {
		errorJSON(w, http.StatusForbidden, "only superadmins may assign admin roles")
		return
	}

	user, err := h.authSvc.UpdateUser(r.Context(), id, strings.TrimSpace(req.Name), req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			errorJSON(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to update user", "error", err, "user_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.audit(r, "user_updated", id)
	writeJSON(w, http.StatusOK, map[string]any{"user": toAdminUserJSON(user)})
}

// ToggleActive handles POST /admin/users/{id}/toggle-active. An admin
// cannot deactivate their own account.
func (h *UserHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if actorID, ok := middleware.UserFromContext(r.Context()); ok && actorID == id {
		errorJSON(w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}

	user, err := h.authSvc.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			errorJSON(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to get user", "error", err, "user_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.authSvc.SetActive(r.Context(), id, !user.IsActive); err != nil {
		h.logger.Error("failed to toggle user", "error", err, "user_id", id)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if user.IsActive {
		h.audit(r, "user_deactivated", id)
	} else {
		h.audit(r, "user_activated", id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"is_active": !user.IsActive})
}

func (h *UserHandler) audit(r *http.Request, action string, target uuid.UUID) {
	if actorID, ok := middleware.UserFromContext(r.Context()); ok {
		h.authSvc.AuditLog(r.Context(), actorID, action, "user:"+target.String(), "")
	}
}

func callerIsSuperadmin(r *http.Request) bool {
	role, ok := middleware.RoleFromContext(r.Context())
	return ok && role == auth.RoleSuperadmin
}
