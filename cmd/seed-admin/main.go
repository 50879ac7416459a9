package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/config"
	"github.com/toolhive/api/internal/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := config.LoadDev()

	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sessionMgr := auth.NewSessionManager(pool, 0)
	authService := auth.NewService(pool, sessionMgr, logger, cfg.TOTPIssuer)

	email := "admin@toolhive.local"
	password := "admin123"
	name := "Admin"

	if len(os.Args) > 1 {
		email = os.Args[1]
	}
	if len(os.Args) > 2 {
		password = os.Args[2]
	}

	// Check if user already exists
	_, err = authService.GetUserByEmail(context.Background(), email)
	if err == nil {
		fmt.Printf("Admin user %s already exists\n", email)
		os.Exit(0)
	}

	user, err := authService.CreateUser(context.Background(), email, name, password, auth.RoleSuperadmin)
	if err != nil {
		slog.Error("failed to create admin user", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Admin user created:\n  ID:    %s\n  Email: %s\n  Name:  %s\n  Role:  %s\n\nLogin via POST http://localhost:%d/admin/login\nSet up 2FA with POST /admin/2fa/setup once logged in.\n", user.ID, user.Email, user.Name, user.Role, cfg.AdminPort)
}
