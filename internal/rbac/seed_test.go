package rbac

import (
	"context"
	"testing"
)

func TestEnsureSeedIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.EnsureSeed(ctx); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	permsAfterFirst := len(store.permissions)
	rolesAfterFirst := len(store.roles)

	if err := svc.EnsureSeed(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if len(store.permissions) != permsAfterFirst {
		t.Fatalf("expected %d permissions, got %d", permsAfterFirst, len(store.permissions))
	}
	if len(store.roles) != rolesAfterFirst {
		t.Fatalf("expected %d roles, got %d", rolesAfterFirst, len(store.roles))
	}
}

func TestEnsureSeedCreatesSystemRoles(t *testing.T) {
	svc, store := seedTestService(t)
	ctx := context.Background()

	admin, err := store.Roles(ctx).FindByName(ctx, RoleAdmin)
	if err != nil {
		t.Fatalf("admin role: %v", err)
	}
	if !admin.IsSystemRole {
		t.Fatal("expected admin to be a system role")
	}
	if len(admin.PermissionIDs) != len(SystemPermissions) {
		t.Fatalf("expected admin to hold all %d system permissions, got %d",
			len(SystemPermissions), len(admin.PermissionIDs))
	}

	user, err := store.Roles(ctx).FindByName(ctx, RoleUser)
	if err != nil {
		t.Fatalf("user role: %v", err)
	}
	if !user.IsSystemRole {
		t.Fatal("expected user to be a system role")
	}
	if len(user.PermissionIDs) != len(baselineUserPermissions) {
		t.Fatalf("expected baseline of %d permissions, got %d",
			len(baselineUserPermissions), len(user.PermissionIDs))
	}
	_ = svc
}

func TestEnsureSeedReconcilesSystemRolePermissions(t *testing.T) {
	svc, store := seedTestService(t)
	ctx := context.Background()

	user, _ := store.Roles(ctx).FindByName(ctx, RoleUser)
	if err := store.Roles(ctx).SetPermissions(ctx, user.ID, nil); err != nil {
		t.Fatalf("strip permissions: %v", err)
	}

	if err := svc.EnsureSeed(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	user, _ = store.Roles(ctx).FindByName(ctx, RoleUser)
	if len(user.PermissionIDs) != len(baselineUserPermissions) {
		t.Fatalf("expected baseline restored, got %d permissions", len(user.PermissionIDs))
	}
}

func TestEnsureSeedDoesNotResurrectStarterRoles(t *testing.T) {
	svc, store := seedTestService(t)
	ctx := context.Background()

	viewer, err := store.Roles(ctx).FindByName(ctx, "viewer")
	if err != nil {
		t.Fatalf("viewer role: %v", err)
	}
	if viewer.IsSystemRole {
		t.Fatal("starter roles must not be system roles")
	}
	if err := svc.DeleteRole(ctx, viewer.ID); err != nil {
		t.Fatalf("delete viewer: %v", err)
	}

	if err := svc.EnsureSeed(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if _, err := store.Roles(ctx).FindByName(ctx, "viewer"); err == nil {
		t.Fatal("expected deleted starter role to stay deleted")
	}
}
