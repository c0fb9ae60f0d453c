package rbac

import (
	"context"
	"errors"
	"sort"
)

// Principal represents a user with resolved roles and effective permissions.
type Principal struct {
	User        *User
	Roles       []*Role
	Permissions map[string]struct{}
}

// HasPermission reports whether the principal holds the named permission.
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[name]
	return ok
}

// PermissionNames returns the effective permission set in sorted order for
// stable API responses.
func (p Principal) PermissionNames() []string {
	out := make([]string, 0, len(p.Permissions))
	for name := range p.Permissions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RoleNames returns the names of the principal's resolved roles.
func (p Principal) RoleNames() []string {
	out := make([]string, 0, len(p.Roles))
	for _, role := range p.Roles {
		out = append(out, role.Name)
	}
	return out
}

// Principal loads a user and resolves its effective permission set: the union
// of permissions over every assigned role, deduplicated. A role reference
// that no longer resolves contributes nothing; resolution never fails on a
// dangling reference.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	users := s.store.Users(ctx)
	roles := s.store.Roles(ctx)

	user, err := users.Find(ctx, userID)
	if err != nil {
		return Principal{}, err
	}

	resolved := make([]*Role, 0, len(user.RoleIDs))
	permSet := make(map[string]struct{})
	for _, roleID := range user.RoleIDs {
		role, err := roles.Find(ctx, roleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Principal{}, err
		}
		resolved = append(resolved, role)
		perms, err := roles.PermissionsForRole(ctx, role.ID)
		if err != nil {
			return Principal{}, err
		}
		for _, p := range perms {
			permSet[p.Name] = struct{}{}
		}
	}
	return Principal{User: user, Roles: resolved, Permissions: permSet}, nil
}

// EffectivePermissions returns the user's deduplicated permission names,
// sorted.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	principal, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return principal.PermissionNames(), nil
}

// HasPermission reports whether the user holds the named permission. It
// short-circuits at the first role granting it; the result is identical to a
// membership test against EffectivePermissions.
func (s *Service) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	users := s.store.Users(ctx)
	roles := s.store.Roles(ctx)

	user, err := users.Find(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, roleID := range user.RoleIDs {
		perms, err := roles.PermissionsForRole(ctx, roleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return false, err
		}
		for _, p := range perms {
			if p.Name == permission {
				return true, nil
			}
		}
	}
	return false, nil
}

// Require resolves the principal and ensures it holds the permission.
func (s *Service) Require(ctx context.Context, userID, permission string) (Principal, error) {
	principal, err := s.Principal(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if !principal.HasPermission(permission) {
		return Principal{}, ErrUnauthorized
	}
	return principal, nil
}
