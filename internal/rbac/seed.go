package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// EnsureSeed installs the system permission catalog and system roles. It is
// idempotent: re-running reconciles system role permission lists without
// duplicating or removing existing entities.
func (s *Service) EnsureSeed(ctx context.Context) error {
	perms := s.store.Permissions(ctx)
	if err := perms.Ensure(ctx, SystemPermissions); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}

	// Starter roles are a first-boot convenience. An admin role already on
	// record means this store was seeded before, and a starter role absent
	// now was deleted on purpose; do not resurrect it.
	_, err := s.store.Roles(ctx).FindByName(ctx, RoleAdmin)
	firstSeed := errors.Is(err, ErrNotFound)
	if err != nil && !firstSeed {
		return err
	}

	catalog, listErr := perms.List(ctx, "")
	if listErr != nil {
		return listErr
	}
	byName := make(map[string]string, len(catalog))
	var systemIDs []string
	for _, p := range catalog {
		byName[p.Name] = p.ID
		if p.IsSystemPermission {
			systemIDs = append(systemIDs, p.ID)
		}
	}

	baselineIDs := make([]string, 0, len(baselineUserPermissions))
	for _, name := range baselineUserPermissions {
		id, ok := byName[name]
		if !ok {
			return fmt.Errorf("seed: baseline permission %q missing from catalog", name)
		}
		baselineIDs = append(baselineIDs, id)
	}

	if err := s.ensureSystemRole(ctx, RoleAdmin, "System administrator with every permission", systemIDs); err != nil {
		return err
	}
	if err := s.ensureSystemRole(ctx, RoleUser, "Standard account with baseline task access", baselineIDs); err != nil {
		return err
	}

	if !firstSeed {
		return nil
	}
	for _, def := range starterRoles {
		permIDs := make([]string, 0, len(def.permissions))
		for _, name := range def.permissions {
			if id, ok := byName[name]; ok {
				permIDs = append(permIDs, id)
			}
		}
		if err := s.ensureStarterRole(ctx, def.name, def.description, permIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureSystemRole(ctx context.Context, name, description string, permissionIDs []string) error {
	roles := s.store.Roles(ctx)
	role, err := roles.FindByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		role = &Role{
			Name:          name,
			Description:   description,
			PermissionIDs: permissionIDs,
			IsSystemRole:  true,
		}
		if err := roles.Create(ctx, role); err != nil {
			return fmt.Errorf("seed role %q: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if samePermissionSet(role.PermissionIDs, permissionIDs) {
		return nil
	}
	if err := roles.SetPermissions(ctx, role.ID, permissionIDs); err != nil {
		return fmt.Errorf("reconcile role %q: %w", name, err)
	}
	return nil
}

func (s *Service) ensureStarterRole(ctx context.Context, name, description string, permissionIDs []string) error {
	roles := s.store.Roles(ctx)
	_, err := roles.FindByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	role := &Role{
		Name:          name,
		Description:   description,
		PermissionIDs: permissionIDs,
	}
	if err := roles.Create(ctx, role); err != nil {
		return fmt.Errorf("seed role %q: %w", name, err)
	}
	return nil
}

func samePermissionSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
