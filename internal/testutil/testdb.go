// Package testutil provides shared test infrastructure for integration
// tests. It uses testcontainers-go to start a real PostgreSQL instance,
// run all migrations, and hand out a connection pool.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/toolhive/api/internal/database"
)

// TestDB holds a PostgreSQL test container and connection pool. It is
// shared across tests in a package via TestMain; each test calls
// Truncate() to reset state.
type TestDB struct {
	Pool      *pgxpool.Pool
	container testcontainers.Container
	connStr   string
}

// SetupTestDB starts a PostgreSQL container, runs all migrations, and
// returns a TestDB with an active connection pool.
//
// Usage in TestMain:
//
//	var testDB *testutil.TestDB
//
//	func TestMain(m *testing.M) {
//	    var code int
//	    defer func() { os.Exit(code) }()
//
//	    db, err := testutil.SetupTestDB()
//	    if err != nil { log.Fatal(err) }
//	    defer db.Close()
//	    testDB = db
//
//	    code = m.Run()
//	}
func SetupTestDB() (*TestDB, error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("toolhive_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("getting connection string: %w", err)
	}

	if err := database.Migrate(connStr); err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return &TestDB{
		Pool:      pool,
		container: container,
		connStr:   connStr,
	}, nil
}

// Close terminates the container and closes the pool.
func (tdb *TestDB) Close() {
	if tdb.Pool != nil {
		tdb.Pool.Close()
	}
	if tdb.container != nil {
		tdb.container.Terminate(context.Background())
	}
}

// Truncate removes all data from application tables. The tools and
// email_templates seeded by the migrations are wiped too; tests that
// need them insert their own rows.
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	// Children first.
	tables := []string{
		"audit_log",
		"contact_messages",
		"user_tools",
		"email_templates",
		"tools",
		"sessions",
		"recovery_codes",
		"users",
	}

	ctx := context.Background()
	for _, table := range tables {
		if _, err := tdb.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			slog.Debug("truncate skipped", "table", table, "error", err.Error())
		}
	}
}

// SeedTools inserts the built-in tool rows most tests expect.
func (tdb *TestDB) SeedTools(t *testing.T) {
	t.Helper()

	_, err := tdb.Pool.Exec(context.Background(), `
		INSERT INTO tools (slug, name, description, min_role) VALUES
			('tax-calculator', 'Tax Calculator', '', 'user'),
			('char-counter', 'Character Counter', '', 'user'),
			('timestamp-converter', 'Timestamp Converter', '', 'user')
		ON CONFLICT (slug) DO NOTHING
	`)
	if err != nil {
		t.Fatalf("seeding tools: %v", err)
	}
}
