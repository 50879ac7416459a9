package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/config"
	"github.com/toolhive/api/internal/database"
	adminhandlers "github.com/toolhive/api/internal/handlers/admin"
	apihandlers "github.com/toolhive/api/internal/handlers/api"
	"github.com/toolhive/api/internal/middleware"
	"github.com/toolhive/api/internal/services/contact"
	"github.com/toolhive/api/internal/services/emailtemplate"
	"github.com/toolhive/api/internal/services/tool"
	"github.com/toolhive/api/internal/tax"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.LoadDev()

	// Connect to database
	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	slog.Info("database connected")

	// Run migrations
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations complete")

	// Initialize auth services
	sessionMgr := auth.NewSessionManager(pool, cfg.SessionTTL)
	authService := auth.NewService(pool, sessionMgr, logger, cfg.TOTPIssuer)
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// Initialize services
	taxEngine := tax.NewEngine()
	toolSvc := tool.NewService(pool, logger)
	templateSvc := emailtemplate.NewService(pool)
	mailer := contact.NewSMTPMailer(cfg.SMTP)
	contactSvc := contact.NewService(pool, templateSvc, mailer, cfg.SMTP.ContactTo, logger)

	// Initialize public API handlers
	accountHandler := apihandlers.NewAccountHandler(authService, jwtMgr, logger)
	toolsHandler := apihandlers.NewToolsHandler(toolSvc, logger)
	calculatorHandler := apihandlers.NewCalculatorHandler(taxEngine, toolSvc, logger)
	textkitHandler := apihandlers.NewTextkitHandler(toolSvc, logger)
	contactHandler := apihandlers.NewContactHandler(contactSvc, logger)

	// Initialize admin handlers
	adminAuthHandler := adminhandlers.NewAuthHandler(authService, logger)
	userHandler := adminhandlers.NewUserHandler(authService, logger)
	adminToolHandler := adminhandlers.NewToolHandler(toolSvc, authService, logger)
	templateHandler := adminhandlers.NewTemplateHandler(templateSvc, authService, logger)
	adminContactHandler := adminhandlers.NewContactHandler(contactSvc, logger)
	dashboardHandler := adminhandlers.NewDashboardHandler(pool, logger)

	// Admin server (session-authenticated JSON)
	adminMux := http.NewServeMux()

	// Health check
	adminMux.HandleFunc("GET /admin/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	// Public admin routes (login, 2FA)
	adminAuthHandler.RegisterPublicRoutes(adminMux)

	// Protected admin routes — wrap in auth middleware
	protectedMux := http.NewServeMux()
	adminAuthHandler.RegisterProtectedRoutes(protectedMux)
	userHandler.RegisterRoutes(protectedMux)
	adminToolHandler.RegisterRoutes(protectedMux)
	templateHandler.RegisterRoutes(protectedMux)
	adminContactHandler.RegisterRoutes(protectedMux)
	dashboardHandler.RegisterRoutes(protectedMux)
	adminMux.Handle("/admin/", middleware.RequireAdmin(authService)(protectedMux))

	// Apply global middleware stack
	var adminChain http.Handler = adminMux
	adminChain = middleware.CSRF(adminChain)
	adminChain = middleware.SecurityHeaders(adminChain)
	adminChain = middleware.LoginRateLimiter()(adminChain) // Brute-force protection on admin login
	adminChain = middleware.Recover(logger)(adminChain)
	adminChain = middleware.RequestLogger(logger)(adminChain)

	adminServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.AdminPort),
		Handler:      adminChain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// API server (JSON REST)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	// Register public API routes (no auth required)
	accountHandler.RegisterRoutes(apiMux)
	contactHandler.RegisterRoutes(apiMux)

	// Register protected API routes (JWT auth required)
	userMux := http.NewServeMux()
	accountHandler.RegisterProtectedRoutes(userMux)
	toolsHandler.RegisterRoutes(userMux)
	calculatorHandler.RegisterRoutes(userMux)
	textkitHandler.RegisterRoutes(userMux)
	requireUser := middleware.RequireUser(jwtMgr)
	apiMux.Handle("/api/v1/account/me", requireUser(userMux))
	apiMux.Handle("/api/v1/tools", requireUser(userMux))
	apiMux.Handle("/api/v1/tools/", requireUser(userMux))

	// Apply API middleware stack (CORS for frontend, rate limiting, logging, recovery)
	var apiChain http.Handler = apiMux
	apiChain = middleware.CORS(cfg.BaseURL)(apiChain)
	apiChain = middleware.RateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)(apiChain)
	apiChain = middleware.Recover(logger)(apiChain)
	apiChain = middleware.RequestLogger(logger)(apiChain)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      apiChain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Expired-session sweeper
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if n, err := sessionMgr.CleanupExpired(cleanupCtx); err != nil {
					slog.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()

	// Start servers
	errCh := make(chan error, 2)

	go func() {
		slog.Info("admin server starting", "port", cfg.AdminPort)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	go func() {
		slog.Info("API server starting", "port", cfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	cleanupCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := adminServer.Shutdown(ctx); err != nil {
		slog.Error("admin server shutdown error", "error", err)
	}
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("api server shutdown error", "error", err)
	}

	slog.Info("servers stopped")
}
