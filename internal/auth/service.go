package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInvalidCredentials is returned when email/password authentication fails.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive is returned when an account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrEmailTaken is returned when registering with an email that exists.
	ErrEmailTaken = errors.New("email is already registered")

	// ErrInvalidTOTPCode is returned when a TOTP code is invalid.
	ErrInvalidTOTPCode = errors.New("invalid TOTP code")

	// ErrTOTPAlreadySetup is returned when 2FA is already configured.
	ErrTOTPAlreadySetup = errors.New("two-factor authentication is already set up")

	// ErrTOTPNotSetup is returned when 2FA has not been set up.
	ErrTOTPNotSetup = errors.New("two-factor authentication is not set up")

	// ErrInvalidRecoveryCode is returned when a recovery code does not match.
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
)

// User is an account row from the users table.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsActive     bool
	TOTPSecret   string
	TOTPEnabled  bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Service handles account registration, login, and two-factor flows for
// both the public API and the admin surface.
type Service struct {
	pool    *pgxpool.Pool
	session *SessionManager
	logger  *slog.Logger
	issuer  string // TOTP issuer shown in authenticator apps
}

// NewService creates an auth service.
func NewService(pool *pgxpool.Pool, session *SessionManager, logger *slog.Logger, issuer string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, session: session, logger: logger, issuer: issuer}
}

const userColumns = `id, email, name, password_hash, role, is_active, totp_secret, totp_enabled, last_login_at, created_at, updated_at`

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, is_active, totp_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, false, $6, $6)
	`, id, email, name, hash, RoleUser, now)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", id.String()), slog.String("email", email))

	return s.GetUserByID(ctx, id)
}

// Login authenticates with email and password. It does NOT create a session
// or token; the caller decides whether a 2FA step is still required.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn the same time as a real check so the response does not
			// reveal whether the email exists.
			_ = VerifyPassword(dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("failed login attempt", slog.String("email", email))
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// CreateSession issues an admin session for a user whose login (and 2FA, if
// enabled) already succeeded.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) (string, error) {
	token, err := s.session.Create(ctx, userID, ipAddress, userAgent)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	if err := s.UpdateLastLogin(ctx, userID); err != nil {
		s.logger.Error("failed to update last login",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("admin login successful",
		slog.String("user_id", userID.String()),
		slog.String("ip", ipAddress),
	)
	return token, nil
}

// CompleteTwoFactor validates a TOTP code and creates an admin session.
func (s *Service) CompleteTwoFactor(ctx context.Context, userID uuid.UUID, code, ipAddress, userAgent string) (string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetching user for 2FA: %w", err)
	}

	if !user.TOTPEnabled || user.TOTPSecret == "" {
		return "", ErrTOTPNotSetup
	}

	if !ValidateTOTPCode(code, user.TOTPSecret) {
		s.logger.Warn("failed 2FA attempt", slog.String("user_id", userID.String()))
		return "", ErrInvalidTOTPCode
	}

	return s.CreateSession(ctx, userID, ipAddress, userAgent)
}

// Setup2FA generates a TOTP secret for a user without 2FA. The secret is
// stored but not enabled until Confirm2FA verifies a code.
func (s *Service) Setup2FA(ctx context.Context, userID uuid.UUID) (*TOTPSetup, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching user for 2FA setup: %w", err)
	}

	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadySetup
	}

	setup, err := GenerateTOTPSecret(s.issuer, user.Email)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE users SET totp_secret = $1, updated_at = $2 WHERE id = $3
	`, setup.Secret, time.Now().UTC(), userID)
	if err != nil {
		return nil, fmt.Errorf("storing TOTP secret: %w", err)
	}

	return setup, nil
}

// Confirm2FA verifies the first TOTP code, enables 2FA, and issues recovery
// codes. Returns the plaintext codes to show the user once.
func (s *Service) Confirm2FA(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching user for 2FA confirmation: %w", err)
	}

	if user.TOTPEnabled {
		return nil, ErrTOTPAlreadySetup
	}
	if user.TOTPSecret == "" {
		return nil, ErrTOTPNotSetup
	}

	if !ValidateTOTPCode(code, user.TOTPSecret) {
		return nil, ErrInvalidTOTPCode
	}

	recovery, err := GenerateRecoveryCodes()
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning 2FA transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE users SET totp_enabled = true, updated_at = $1 WHERE id = $2
	`, now, userID); err != nil {
		return nil, fmt.Errorf("enabling 2FA: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clearing old recovery codes: %w", err)
	}
	for _, hash := range recovery.Hashed {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recovery_codes (id, user_id, code_hash, created_at)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), userID, hash, now); err != nil {
			return nil, fmt.Errorf("storing recovery code: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing 2FA transaction: %w", err)
	}

	s.AuditLog(ctx, userID, "2fa_enabled", "user:"+userID.String(), "")

	return recovery.Plaintext, nil
}

// UseRecoveryCode validates a recovery code, burns it, and creates a session.
func (s *Service) UseRecoveryCode(ctx context.Context, userID uuid.UUID, code, ipAddress, userAgent string) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code_hash FROM recovery_codes
		WHERE user_id = $1 AND used_at IS NULL
	`, userID)
	if err != nil {
		return "", fmt.Errorf("querying recovery codes: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	var hashes []string
	for rows.Next() {
		var id uuid.UUID
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return "", fmt.Errorf("scanning recovery code: %w", err)
		}
		ids = append(ids, id)
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating recovery codes: %w", err)
	}

	idx := MatchRecoveryCode(code, hashes)
	if idx == -1 {
		s.logger.Warn("invalid recovery code attempt", slog.String("user_id", userID.String()))
		return "", ErrInvalidRecoveryCode
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE recovery_codes SET used_at = $1 WHERE id = $2
	`, time.Now().UTC(), ids[idx])
	if err != nil {
		return "", fmt.Errorf("burning recovery code: %w", err)
	}

	s.AuditLog(ctx, userID, "recovery_code_used", "user:"+userID.String(),
		fmt.Sprintf("codes remaining: %d", len(ids)-1))

	return s.CreateSession(ctx, userID, ipAddress, userAgent)
}

// UpdateLastLogin stamps the last_login_at column for a user.
func (s *Service) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $1 WHERE id = $2
	`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// GetUserByID fetches a user by ID.
func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail fetches a user by email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// ListUsers returns all users ordered by creation time, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUser creates a user with an explicit role. Used by the admin surface.
func (s *Service) CreateUser(ctx context.Context, email, name, password, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, is_active, totp_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, false, $6, $6)
	`, id, email, name, hash, role, now)
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// UpdateUser changes a user's name and role.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, name, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	result, err := s.pool.Exec(ctx, `
		UPDATE users SET name = $1, role = $2, updated_at = $3 WHERE id = $4
	`, name, role, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUserByID(ctx, id)
}

// SetActive enables or disables an account. Disabling also kills any live
// sessions so the user cannot keep an authenticated admin tab open.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3
	`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating user active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if !active {
		if err := s.session.DeleteForUser(ctx, id); err != nil {
			s.logger.Error("failed to delete sessions for deactivated user",
				slog.String("user_id", id.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// Logout deletes the session for the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.session.Delete(ctx, token)
}

// ValidateSession resolves a session token to its user. Inactive users get
// their session deleted on the spot.
func (s *Service) ValidateSession(ctx context.Context, token string) (*User, *Session, error) {
	sess, err := s.session.Get(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching user for session: %w", err)
	}

	if !user.IsActive {
		_ = s.session.Delete(ctx, token)
		return nil, nil, ErrUserInactive
	}

	return user, sess, nil
}

// AuditLog records an admin action. Failures are logged, not returned, so an
// audit problem never breaks the action itself.
func (s *Service) AuditLog(ctx context.Context, actorID uuid.UUID, action, target, detail string) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, action, target, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), actorID, action, target, detail, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to write audit log",
			slog.String("action", action),
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
	}
}

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var totpSecret *string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&totpSecret,
		&user.TOTPEnabled,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if totpSecret != nil {
		user.TOTPSecret = *totpSecret
	}

	return user, nil
}
