package tool_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/services/tool"
	"github.com/toolhive/api/internal/testutil"
)

var testDB *testutil.TestDB

func TestMain(m *testing.M) {
	var code int
	defer func() { os.Exit(code) }()

	db, err := testutil.SetupTestDB()
	if err != nil {
		log.Fatalf("setting up test database: %v", err)
	}
	defer db.Close()
	testDB = db

	code = m.Run()
}

func newService() *tool.Service {
	return tool.NewService(testDB.Pool, nil)
}

func createUser(t *testing.T, email, role string) *auth.User {
	t.Helper()
	svc := auth.NewService(testDB.Pool, auth.NewSessionManager(testDB.Pool, 0), nil, "ToolHive")
	user, err := svc.CreateUser(context.Background(), email, "Test User", "password123!", role)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

func TestCreate_AndGet(t *testing.T) {
	testDB.Truncate(t)
	svc := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "word-counter", "Word Counter", "Counts words", auth.RoleUser)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Enabled {
		t.Error("new tools should start enabled")
	}

	got, err := svc.GetBySlug(ctx, "word-counter")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("id mismatch: got %s, want %s", got.ID, created.ID)
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	testDB.Truncate(t)
	svc := newService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "dupe", "First", "", auth.RoleUser); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := svc.Create(ctx, "dupe", "Second", "", auth.RoleUser)
	if !errors.Is(err, tool.ErrSlugTaken) {
		t.Errorf("expected ErrSlugTaken, got %v", err)
	}
}

func TestListEnabled_FiltersByRole(t *testing.T) {
	testDB.Truncate(t)
	svc := newService()
	ctx := context.Background()

	svc.Create(ctx, "for-everyone", "For Everyone", "", auth.RoleUser)
	svc.Create(ctx, "admins-only", "Admins Only", "", auth.RoleAdmin)

	forUser, err := svc.ListEnabled(ctx, auth.RoleUser)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(forUser) != 1 || forUser[0].Slug != "for-everyone" {
		t.Errorf("user list: got %d tools, want only for-everyone", len(forUser))
	}

	forAdmin, err := svc.ListEnabled(ctx, auth.RoleAdmin)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(forAdmin) != 2 {
		t.Errorf("admin list: got %d tools, want 2", len(forAdmin))
	}
}

func TestCanAccess(t *testing.T) {
	testDB.Truncate(t)
	svc := newService()
	ctx := context.Background()

	user := createUser(t, "access@example.com", auth.RoleUser)
	admin := createUser(t, "admin@example.com", auth.RoleAdmin)

	if _, err := svc.Create(ctx, "open-tool", "Open Tool", "", auth.RoleUser); err != nil {
		t.Fatalf("Create: %v", err)
	}
	gated, err := svc.Create(ctx, "gated-tool", "Gated Tool", "", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	disabled, err := svc.Create(ctx, "disabled-tool", "Disabled Tool", "", auth.RoleUser)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.SetEnabled(ctx, disabled.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	cases := []struct {
		name string
		user *auth.User
		slug string
		want bool
	}{
		{"user can use open tool", user, "open-tool", true},
		{"user blocked from gated tool", user, "gated-tool", false},
		{"admin can use gated tool", admin, "gated-tool", true},
		{"disabled tool blocked for everyone", admin, "disabled-tool", false},
		{"unknown slug denied without error", user, "no-such-tool", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanAccess(ctx, tc.user.ID, tc.user.Role, tc.slug)
			if err != nil {
				t.Fatalf("CanAccess: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	// An explicit grant bypasses the role gate.
	if err := svc.GrantAccess(ctx, user.ID, gated.ID, admin.ID); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}
	got, err := svc.CanAccess(ctx, user.ID, user.Role, "gated-tool")
	if err != nil {
		t.Fatalf("CanAccess: %v", err)
	}
	if !got {
		t.Error("expected grant to allow access to gated tool")
	}

	// Revoking the grant restores the role gate.
	if err := svc.RevokeAccess(ctx, user.ID, gated.ID); err != nil {
		t.Fatalf("RevokeAccess: %v", err)
	}
	got, err = svc.CanAccess(ctx, user.ID, user.Role, "gated-tool")
	if err != nil {
		t.Fatalf("CanAccess: %v", err)
	}
	if got {
		t.Error("expected access to be denied after revoke")
	}
}

func TestListGrants(t *testing.T) {
	testDB.Truncate(t)
	svc := newService()
	ctx := context.Background()

	user := createUser(t, "grantee@example.com", auth.RoleUser)
	admin := createUser(t, "granter@example.com", auth.RoleAdmin)
	tl, _ := svc.Create(ctx, "granted-tool", "Granted Tool", "", auth.RoleAdmin)

	if err := svc.GrantAccess(ctx, user.ID, tl.ID, admin.ID); err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	grants, err := svc.ListGrants(ctx, tl.ID)
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grants: got %d, want 1", len(grants))
	}
	if grants[0].UserID != user.ID {
		t.Errorf("grant user: got %s, want %s", grants[0].UserID, user.ID)
	}
	if grants[0].GrantedBy == nil || *grants[0].GrantedBy != admin.ID {
		t.Error("granted_by not recorded")
	}
}
