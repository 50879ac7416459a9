package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardHandler serves aggregate stats for the admin landing page.
type DashboardHandler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(pool *pgxpool.Pool, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{pool: pool, logger: logger}
}

// RegisterRoutes registers the dashboard route on the given mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/dashboard", h.Show)
}

type auditEntryJSON struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	Action    string     `json:"action"`
	Target    string     `json:"target"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Show handles GET /admin/dashboard.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stats struct {
		Users             int64 `json:"users"`
		ActiveUsers       int64 `json:"active_users"`
		Tools             int64 `json:"tools"`
		EnabledTools      int64 `json:"enabled_tools"`
		UnhandledMessages int64 `json:"unhandled_messages"`
	}

	err := h.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM users WHERE is_active),
			(SELECT count(*) FROM tools),
			(SELECT count(*) FROM tools WHERE enabled),
			(SELECT count(*) FROM contact_messages WHERE NOT handled)
	`).Scan(&stats.Users, &stats.ActiveUsers, &stats.Tools, &stats.EnabledTools, &stats.UnhandledMessages)
	if err != nil {
		h.logger.Error("failed to load dashboard stats", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	rows, err := h.pool.Query(ctx, `
		SELECT id, actor_id, action, target, detail, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT 20
	`)
	if err != nil {
		h.logger.Error("failed to load audit log", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer rows.Close()

	audit := make([]auditEntryJSON, 0, 20)
	for rows.Next() {
		var entry auditEntryJSON
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Target, &entry.Detail, &entry.CreatedAt); err != nil {
			h.logger.Error("failed to scan audit entry", "error", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
			return
		}
		audit = append(audit, entry)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to iterate audit log", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":        stats,
		"recent_audit": audit,
	})
}
