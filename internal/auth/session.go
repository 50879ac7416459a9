package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultSessionTTL = 8 * time.Hour
	tokenBytes        = 32 // 64 hex chars
)

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found or expired")

// Session is an active admin-surface session backed by the sessions table.
type Session struct {
	Token     string
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager stores sessions in PostgreSQL with a sliding expiry.
type SessionManager struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewSessionManager creates a session manager. A zero ttl defaults to 8 hours.
func NewSessionManager(pool *pgxpool.Pool, ttl time.Duration) *SessionManager {
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	return &SessionManager{pool: pool, ttl: ttl}
}

// Create issues a new session token for the user.
func (sm *SessionManager) Create(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	now := time.Now().UTC()
	_, err = sm.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token, userID, ipAddress, userAgent, now, now.Add(sm.ttl))
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	return token, nil
}

// Get returns the session for a token if it has not expired, and slides the
// expiry forward on each valid access.
func (sm *SessionManager) Get(ctx context.Context, token string) (*Session, error) {
	session := &Session{}
	err := sm.pool.QueryRow(ctx, `
		SELECT token, user_id, ip_address, user_agent, created_at, expires_at
		FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`, token).Scan(
		&session.Token,
		&session.UserID,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	newExpiry := time.Now().UTC().Add(sm.ttl)
	_, err = sm.pool.Exec(ctx, `
		UPDATE sessions SET expires_at = $1 WHERE token = $2
	`, newExpiry, token)
	if err != nil {
		// The session is still valid; failing to extend it is not fatal.
		return session, nil
	}

	session.ExpiresAt = newExpiry
	return session, nil
}

// Delete removes a session by token (logout).
func (sm *SessionManager) Delete(ctx context.Context, token string) error {
	result, err := sm.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteForUser removes every session for a user (force logout everywhere).
func (sm *SessionManager) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := sm.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions. Called periodically from main.
func (sm *SessionManager) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := sm.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
