package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// ErrEmptyPassword is returned when an empty password is provided.
var ErrEmptyPassword = errors.New("password cannot be empty")

// dummyHash is compared against when the account does not exist, so that
// lookups for unknown emails take as long as real password checks.
const dummyHash = "$2a$12$000000000000000000000000000000000000000000000000000000"

// HashPassword hashes a password with bcrypt cost 12.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword compares a plaintext password with its bcrypt hash.
// Returns nil if the password matches.
func VerifyPassword(hashedPassword, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("invalid password: %w", err)
		}
		return fmt.Errorf("verifying password: %w", err)
	}

	return nil
}
