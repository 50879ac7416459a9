package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toolhive/api/internal/config"
	"github.com/toolhive/api/internal/services/emailtemplate"
)

// ErrMessageNotFound is returned when a contact message does not exist.
var ErrMessageNotFound = errors.New("contact message not found")

// Message is a row from the contact_messages table.
type Message struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Subject   string
	Body      string
	Handled   bool
	CreatedAt time.Time
}

// Mailer sends a single email. net/smtp satisfies this in production;
// tests substitute a recorder.
type Mailer interface {
	Send(to, subject, body string) error
}

// Service stores contact-form submissions and notifies the support inbox.
type Service struct {
	pool      *pgxpool.Pool
	templates *emailtemplate.Service
	mailer    Mailer
	contactTo string
	logger    *slog.Logger
}

// NewService creates a contact service.
func NewService(pool *pgxpool.Pool, templates *emailtemplate.Service, mailer Mailer, contactTo string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:      pool,
		templates: templates,
		mailer:    mailer,
		contactTo: contactTo,
		logger:    logger,
	}
}

// Submit stores a contact message and sends the notification email. A mail
// failure is logged but does not fail the submission; the message is
// already persisted and visible in the admin surface.
func (s *Service) Submit(ctx context.Context, name, email, subject, body string) (*Message, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, body, handled, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`, id, name, email, subject, body, now)
	if err != nil {
		return nil, fmt.Errorf("inserting contact message: %w", err)
	}

	s.notify(ctx, name, email, subject, body)

	return s.GetByID(ctx, id)
}

func (s *Service) notify(ctx context.Context, name, email, subject, body string) {
	tmpl, err := s.templates.GetBySlug(ctx, "contact-received")
	if err != nil {
		s.logger.Error("contact notification template missing", "error", err.Error())
		return
	}

	rendered := emailtemplate.Render(tmpl, map[string]string{
		"name":    name,
		"email":   email,
		"subject": subject,
		"body":    body,
	})

	if err := s.mailer.Send(s.contactTo, rendered.Subject, rendered.Body); err != nil {
		s.logger.Error("failed to send contact notification",
			"to", s.contactTo,
			"error", err.Error(),
		)
	}
}

const messageColumns = `id, name, email, subject, body, handled, created_at`

// List returns contact messages, newest first. When unhandledOnly is set,
// handled messages are filtered out.
func (s *Service) List(ctx context.Context, unhandledOnly bool) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM contact_messages`
	if unhandledOnly {
		query += ` WHERE handled = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying contact messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetByID fetches a contact message.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM contact_messages WHERE id = $1`, id))
}

// MarkHandled flags a message as dealt with.
func (s *Service) MarkHandled(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE contact_messages SET handled = true WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking message handled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	msg := &Message{}
	err := row.Scan(
		&msg.ID,
		&msg.Name,
		&msg.Email,
		&msg.Subject,
		&msg.Body,
		&msg.Handled,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("scanning contact message: %w", err)
	}
	return msg, nil
}

// SMTPMailer sends mail through a plain SMTP relay (e.g. a local MailHog
// in development).
type SMTPMailer struct {
	addr string
	from string
}

// NewSMTPMailer creates a mailer from SMTP config.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
	}
}

// Send delivers one message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", m.addr, err)
	}
	return nil
}
