package admin

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/middleware"
)

// AuthHandler serves admin login, 2FA, and logout endpoints.
type AuthHandler struct {
	auth   *auth.Service
	logger *slog.Logger
}

// NewAuthHandler creates an admin auth handler.
func NewAuthHandler(authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: authSvc, logger: logger}
}

// RegisterPublicRoutes registers routes reachable without a session.
func (h *AuthHandler) RegisterPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/login", h.Login)
	mux.HandleFunc("POST /admin/login/2fa", h.VerifyTwoFactor)
	mux.HandleFunc("POST /admin/login/recovery", h.UseRecoveryCode)
}

// RegisterProtectedRoutes registers routes behind RequireAdmin.
func (h *AuthHandler) RegisterProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/logout", h.Logout)
	mux.HandleFunc("GET /admin/me", h.Me)
	mux.HandleFunc("POST /admin/2fa/setup", h.Setup2FA)
	mux.HandleFunc("POST /admin/2fa/confirm", h.Confirm2FA)
}

// Login handles POST /admin/login. When 2FA is enabled for the account, the
// response asks for the second factor and a short-lived pending cookie marks
// the half-finished login; otherwise the session is created immediately.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.auth.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrEmptyPassword):
			errorJSON(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, auth.ErrUserInactive):
			errorJSON(w, http.StatusForbidden, "account is disabled")
		default:
			h.logger.Error("admin login failed", "error", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if !auth.RoleAtLeast(user.Role, auth.RoleAdmin) {
		errorJSON(w, http.StatusForbidden, "admin access required")
		return
	}

	if user.TOTPEnabled {
		setPending2FACookie(w, user.ID)
		writeJSON(w, http.StatusOK, map[string]any{"requires_2fa": true})
		return
	}

	ip, ua := clientInfo(r)
	token, err := h.auth.CreateSession(r.Context(), user.ID, ip, ua)
	if err != nil {
		h.logger.Error("session creation failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"requires_2fa": false})
}

// VerifyTwoFactor handles POST /admin/login/2fa.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID, err := pending2FAUserID(r)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "no pending login")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	ip, ua := clientInfo(r)
	token, err := h.auth.CompleteTwoFactor(r.Context(), userID, req.Code, ip, ua)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidTOTPCode) || errors.Is(err, auth.ErrTOTPNotSetup) {
			errorJSON(w, http.StatusUnauthorized, "invalid code")
			return
		}
		h.logger.Error("2FA verification failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	clearPending2FACookie(w)
	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// UseRecoveryCode handles POST /admin/login/recovery.
func (h *AuthHandler) UseRecoveryCode(w http.ResponseWriter, r *http.Request) {
	userID, err := pending2FAUserID(r)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "no pending login")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	ip, ua := clientInfo(r)
	token, err := h.auth.UseRecoveryCode(r.Context(), userID, req.Code, ip, ua)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRecoveryCode) {
			errorJSON(w, http.StatusUnauthorized, "invalid recovery code")
			return
		}
		h.logger.Error("recovery code use failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	clearPending2FACookie(w)
	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Logout handles POST /admin/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionTokenFromContext(r.Context()); ok {
		if err := h.auth.Logout(r.Context(), token); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
			h.logger.Error("logout failed", "error", err)
		}
	}

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Me handles GET /admin/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserFromContext(r.Context())

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           user.ID,
		"email":        user.Email,
		"name":         user.Name,
		"role":         user.Role,
		"totp_enabled": user.TOTPEnabled,
		"csrf_token":   middleware.CSRFToken(r),
	})
}

// Setup2FA handles POST /admin/2fa/setup. The QR code PNG is returned
// base64-encoded so the JSON client can inline it as a data URL.
func (h *AuthHandler) Setup2FA(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserFromContext(r.Context())

	setup, err := h.auth.Setup2FA(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrTOTPAlreadySetup) {
			errorJSON(w, http.StatusConflict, "two-factor authentication is already set up")
			return
		}
		h.logger.Error("2FA setup failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret": setup.Secret,
		"url":    setup.URL,
		"qr_png": base64.StdEncoding.EncodeToString(setup.QRCode),
	})
}

// Confirm2FA handles POST /admin/2fa/confirm.
func (h *AuthHandler) Confirm2FA(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	codes, err := h.auth.Confirm2FA(r.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidTOTPCode):
			errorJSON(w, http.StatusBadRequest, "invalid code")
		case errors.Is(err, auth.ErrTOTPAlreadySetup):
			errorJSON(w, http.StatusConflict, "two-factor authentication is already set up")
		case errors.Is(err, auth.ErrTOTPNotSetup):
			errorJSON(w, http.StatusBadRequest, "run setup before confirming")
		default:
			h.logger.Error("2FA confirmation failed", "error", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"recovery_codes": codes})
}

// --- pending 2FA cookie ---

const pending2FACookieName = "pending_2fa"

func setPending2FACookie(w http.ResponseWriter, userID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     pending2FACookieName,
		Value:    userID.String(),
		Path:     "/admin",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   300, // 5 minutes
	})
}

func clearPending2FACookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     pending2FACookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func pending2FAUserID(r *http.Request) (uuid.UUID, error) {
	cookie, err := r.Cookie(pending2FACookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, errors.New("no pending 2FA login")
	}
	return uuid.Parse(cookie.Value)
}
