package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/toolhive/api/internal/auth"
)

func TestRequireUser_ValidToken(t *testing.T) {
	jwtMgr := auth.NewJWTManager("test-secret")
	userID := uuid.New()

	token, err := jwtMgr.GenerateAccessToken(userID, "user@example.com", auth.RoleUser)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	var gotID uuid.UUID
	handler := RequireUser(jwtMgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if gotID != userID {
		t.Errorf("user ID in context: got %s, want %s", gotID, userID)
	}
}

func TestRequireUser_MissingHeader(t *testing.T) {
	handler := RequireUser(auth.NewJWTManager("test-secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestRequireUser_BadToken(t *testing.T) {
	handler := RequireUser(auth.NewJWTManager("test-secret"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		required string
		want     int
	}{
		{"admin passes admin gate", auth.RoleAdmin, auth.RoleAdmin, http.StatusOK},
		{"superadmin passes admin gate", auth.RoleSuperadmin, auth.RoleAdmin, http.StatusOK},
		{"admin blocked from superadmin gate", auth.RoleAdmin, auth.RoleSuperadmin, http.StatusForbidden},
		{"user blocked from admin gate", auth.RoleUser, auth.RoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwtMgr := auth.NewJWTManager("test-secret")
			token, err := jwtMgr.GenerateAccessToken(uuid.New(), "x@example.com", tt.role)
			if err != nil {
				t.Fatalf("GenerateAccessToken: %v", err)
			}

			handler := RequireUser(jwtMgr)(RequireRole(tt.required)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
