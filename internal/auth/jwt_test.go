package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret")
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID, "user@example.com", RoleUser)
	if err != nil {
		t.Fatalf("GenerateAccessToken returned error: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("UserID: want %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email: want user@example.com, got %q", claims.Email)
	}
	if claims.Role != RoleUser {
		t.Errorf("Role: want %q, got %q", RoleUser, claims.Role)
	}
	if claims.Issuer != "toolhive" {
		t.Errorf("Issuer: want toolhive, got %q", claims.Issuer)
	}
}

func TestJWTManager_RefreshTokenHasID(t *testing.T) {
	m := NewJWTManager("test-secret")

	token, err := m.GenerateRefreshToken(uuid.New(), "user@example.com", RoleUser)
	if err != nil {
		t.Fatalf("GenerateRefreshToken returned error: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if claims.ID == "" {
		t.Error("refresh token should carry a unique token ID")
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	m := NewJWTManager("secret-a")
	other := NewJWTManager("secret-b")

	token, err := m.GenerateAccessToken(uuid.New(), "user@example.com", RoleUser)
	if err != nil {
		t.Fatalf("GenerateAccessToken returned error: %v", err)
	}

	if _, err := other.ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got: %v", err)
	}
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret")
	if _, err := m.ValidateToken("not.a.jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got: %v", err)
	}
}
