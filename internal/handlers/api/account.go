package api

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

// AccountHandler serves registration, login, and profile endpoints on the
// public API.
type AccountHandler struct {
	authSvc *auth.Service
	jwtMgr  *auth.JWTManager
	logger  *slog.Logger
}

// NewAccountHandler creates an account handler.
func NewAccountHandler(authSvc *auth.Service, jwtMgr *auth.JWTManager, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{authSvc: authSvc, jwtMgr: jwtMgr, logger: logger}
}

// RegisterRoutes registers the public routes. RegisterProtectedRoutes must
// be called with the JWT-authenticated mux separately.
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/account/register", h.Register)
	mux.HandleFunc("POST /api/v1/account/login", h.Login)
	mux.HandleFunc("POST /api/v1/account/refresh", h.Refresh)
}

// RegisterProtectedRoutes registers routes that require a Bearer token.
func (h *AccountHandler) RegisterProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/account/me", h.Me)
}

type userJSON struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserJSON(u *auth.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (h *AccountHandler) issueTokens(user *auth.User) (*tokenPair, error) {
	access, err := h.jwtMgr.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := h.jwtMgr.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Register handles POST /api/v1/account/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
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

	user, err := h.authSvc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			errorJSON(w, http.StatusConflict, "email is already registered")
			return
		}
		h.logger.Error("registration failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   toUserJSON(user),
		"tokens": tokens,
	})
}

// Login handles POST /api/v1/account/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authSvc.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrEmptyPassword):
			errorJSON(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, auth.ErrUserInactive):
			errorJSON(w, http.StatusForbidden, "account is disabled")
		default:
			h.logger.Error("login failed", "error", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   toUserJSON(user),
		"tokens": tokens,
	})
}

// Refresh handles POST /api/v1/account/refresh. It trades a valid refresh
// token for a fresh pair, re-reading the user so role or deactivation
// changes take effect.
func (h *AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	claims, err := h.jwtMgr.ValidateToken(req.RefreshToken)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	user, err := h.authSvc.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if !user.IsActive {
		errorJSON(w, http.StatusForbidden, "account is disabled")
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

// Me handles GET /api/v1/account/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserFromContext(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.authSvc.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			errorJSON(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("fetching profile failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toUserJSON(user)})
}
