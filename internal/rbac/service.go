package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OwnedResourceCleaner removes resources owned by a deleted user. The task
// subsystem registers itself here so user deletion cascades without the RBAC
// core importing business logic.
type OwnedResourceCleaner interface {
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// Service provides RBAC lifecycle operations and permission resolution.
type Service struct {
	store   Store
	cleaner OwnedResourceCleaner
	now     func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithOwnedResourceCleaner registers the cascade hook run after user deletion.
func WithOwnedResourceCleaner(c OwnedResourceCleaner) ServiceOption {
	return func(s *Service) {
		s.cleaner = c
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// --- Permission lifecycle ---------------------------------------------------

// CreatePermission registers a new custom permission in the catalog.
func (s *Service) CreatePermission(ctx context.Context, name, description string, category Category) (*Permission, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: permission description is required", ErrInvalidInput)
	}
	category = Category(strings.TrimSpace(strings.ToLower(string(category))))
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}

	perms := s.store.Permissions(ctx)
	if _, err := perms.FindByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: permission %q", ErrAlreadyExists, name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p := &Permission{
		Name:        name,
		Description: description,
		Category:    category,
	}
	if err := perms.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PermissionByName looks a permission up in the registry by its
// case-normalized name.
func (s *Service) PermissionByName(ctx context.Context, name string) (*Permission, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).FindByName(ctx, name)
}

// GetPermission returns a single permission by id.
func (s *Service) GetPermission(ctx context.Context, id string) (*Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).Find(ctx, id)
}

// ListPermissions returns the catalog, optionally filtered by category.
func (s *Service) ListPermissions(ctx context.Context, category Category) ([]*Permission, error) {
	if category != "" && !ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	return s.store.Permissions(ctx).List(ctx, category)
}

// PermissionUpdate carries optional permission field changes.
type PermissionUpdate struct {
	Name        *string
	Description *string
	Category    *Category
}

// UpdatePermission applies changes to a custom permission. System permissions
// are immutable.
func (s *Service) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (*Permission, error) {
	perms := s.store.Permissions(ctx)
	p, err := perms.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsSystemPermission {
		return nil, fmt.Errorf("%w: system permissions cannot be modified", ErrForbidden)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(strings.ToLower(*upd.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		if name != p.Name {
			if _, err := perms.FindByName(ctx, name); err == nil {
				return nil, fmt.Errorf("%w: permission %q", ErrAlreadyExists, name)
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		p.Name = name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		if desc == "" {
			return nil, fmt.Errorf("%w: permission description is required", ErrInvalidInput)
		}
		p.Description = desc
	}
	if upd.Category != nil {
		category := Category(strings.TrimSpace(strings.ToLower(string(*upd.Category))))
		if !ValidCategory(category) {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
		}
		p.Category = category
	}
	if err := perms.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePermission removes a custom permission. System permissions are never
// deleted.
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	perms := s.store.Permissions(ctx)
	p, err := perms.Find(ctx, id)
	if err != nil {
		return err
	}
	if p.IsSystemPermission {
		return fmt.Errorf("%w: system permissions cannot be deleted", ErrForbidden)
	}
	return perms.Delete(ctx, id)
}

// --- Role lifecycle ---------------------------------------------------------

// CreateRole creates a custom role. Every referenced permission id must exist;
// a partial match is a validation error and nothing is persisted.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissionIDs []string) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	description = strings.TrimSpace(description)

	roles := s.store.Roles(ctx)
	if _, err := roles.FindByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: role %q", ErrAlreadyExists, name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	permissionIDs = dedupeIDs(permissionIDs)
	if err := s.validatePermissionIDs(ctx, permissionIDs); err != nil {
		return nil, err
	}

	role := &Role{
		Name:          name,
		Description:   description,
		PermissionIDs: permissionIDs,
	}
	if err := roles.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole returns a single role by id.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Find(ctx, id)
}

// ListRoles returns all roles; system roles are excluded when includeSystem
// is false.
func (s *Service) ListRoles(ctx context.Context, includeSystem bool) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx, includeSystem)
}

// RolePermissions resolves a role's permission references. Dangling
// references are silently skipped.
func (s *Service) RolePermissions(ctx context.Context, roleID string) ([]*Permission, error) {
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return nil, err
	}
	return s.store.Roles(ctx).PermissionsForRole(ctx, roleID)
}

// RoleUpdate carries optional role field changes. A non-nil PermissionIDs
// replaces the whole permission list.
type RoleUpdate struct {
	Name          *string
	Description   *string
	PermissionIDs *[]string
}

// UpdateRole applies changes to a role. System roles cannot be renamed.
func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	roles := s.store.Roles(ctx)
	role, err := roles.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(strings.ToLower(*upd.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		if role.IsSystemRole && name != role.Name {
			return nil, fmt.Errorf("%w: system roles cannot be renamed", ErrForbidden)
		}
		if name != role.Name {
			if _, err := roles.FindByName(ctx, name); err == nil {
				return nil, fmt.Errorf("%w: role %q", ErrAlreadyExists, name)
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.PermissionIDs != nil {
		permIDs := dedupeIDs(*upd.PermissionIDs)
		if err := s.validatePermissionIDs(ctx, permIDs); err != nil {
			return nil, err
		}
		role.PermissionIDs = permIDs
	}
	if err := roles.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a custom role. System roles and roles still referenced
// by users are protected.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	roles := s.store.Roles(ctx)
	role, err := roles.Find(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("%w: system roles cannot be deleted", ErrForbidden)
	}
	count, err := roles.UserCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: role is assigned to %d user(s)", ErrConflict, count)
	}
	return roles.Delete(ctx, id)
}

// AddPermissionToRole appends a permission to the role's list. Adding a
// permission the role already holds is rejected at this layer.
func (s *Service) AddPermissionToRole(ctx context.Context, roleID, permissionID string) (*Role, error) {
	roles := s.store.Roles(ctx)
	role, err := roles.Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Permissions(ctx).Find(ctx, permissionID); err != nil {
		return nil, err
	}
	for _, id := range role.PermissionIDs {
		if id == permissionID {
			return nil, fmt.Errorf("%w: permission already assigned to role", ErrAlreadyExists)
		}
	}
	role.PermissionIDs = append(role.PermissionIDs, permissionID)
	if err := roles.SetPermissions(ctx, roleID, role.PermissionIDs); err != nil {
		return nil, err
	}
	return role, nil
}

// RemovePermissionFromRole removes a permission from the role's list. System
// permissions cannot be stripped from system roles.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID, permissionID string) (*Role, error) {
	roles := s.store.Roles(ctx)
	role, err := roles.Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perm, err := s.store.Permissions(ctx).Find(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if perm.IsSystemPermission && role.IsSystemRole {
		return nil, fmt.Errorf("%w: system permissions cannot be removed from system roles", ErrForbidden)
	}
	idx := -1
	for i, id := range role.PermissionIDs {
		if id == permissionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: permission not assigned to role", ErrNotFound)
	}
	role.PermissionIDs = append(role.PermissionIDs[:idx], role.PermissionIDs[idx+1:]...)
	if err := roles.SetPermissions(ctx, roleID, role.PermissionIDs); err != nil {
		return nil, err
	}
	return role, nil
}

// --- User lifecycle ---------------------------------------------------------

// Register creates a self-service account with the default role.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	defaultRole, err := s.store.Roles(ctx).FindByName(ctx, RoleUser)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("default role %q missing; run the seed first", RoleUser)
		}
		return nil, err
	}
	return s.CreateUser(ctx, name, email, password, []string{defaultRole.ID}, true)
}

// CreateUser creates an account with explicit roles. Accounts always hold at
// least one role.
func (s *Service) CreateUser(ctx context.Context, name, email, password string, roleIDs []string, isActive bool) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	roleIDs = dedupeIDs(roleIDs)
	if len(roleIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", ErrInvalidInput)
	}
	if err := s.validateRoleIDs(ctx, roleIDs); err != nil {
		return nil, err
	}

	users := s.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email %q", ErrAlreadyExists, email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		RoleIDs:      roleIDs,
		IsActive:     isActive,
	}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies credentials and records the login time. Inactive
// accounts are rejected with the same error as bad credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	now := s.now().UTC()
	if err := users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now
	return user, nil
}

// GetUser returns a single user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Find(ctx, id)
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx).List(ctx)
}

// UserUpdate carries optional user field changes.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	IsActive *bool
}

// UpdateUser applies profile changes to an account.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*User, error) {
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		user.Name = name
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		if email != user.Email {
			if _, err := users.FindByEmail(ctx, email); err == nil {
				return nil, fmt.Errorf("%w: email %q", ErrAlreadyExists, email)
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		user.Email = email
	}
	if upd.Password != nil {
		if len(*upd.Password) < 6 {
			return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes an account and cascades to resources it owns. Deleting
// the last holder of the admin role is rejected to prevent lockout.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, id)
	if err != nil {
		return err
	}
	isLastAdmin, err := s.lastAdminHolder(ctx, user)
	if err != nil {
		return err
	}
	if isLastAdmin {
		return fmt.Errorf("%w: cannot delete the last user holding the admin role", ErrConflict)
	}
	if err := users.Delete(ctx, id); err != nil {
		return err
	}
	if s.cleaner != nil {
		if err := s.cleaner.DeleteByOwner(ctx, id); err != nil {
			return fmt.Errorf("cascade cleanup for user %s: %w", id, err)
		}
	}
	return nil
}

// AssignRole adds a role to a user. Duplicate assignment is rejected.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) (*User, error) {
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Roles(ctx).Find(ctx, roleID); err != nil {
		return nil, err
	}
	for _, id := range user.RoleIDs {
		if id == roleID {
			return nil, fmt.Errorf("%w: role already assigned", ErrConflict)
		}
	}
	if err := users.AssignRole(ctx, userID, roleID); err != nil {
		return nil, err
	}
	user.RoleIDs = append(user.RoleIDs, roleID)
	return user, nil
}

// RemoveRole takes a role away from a user. The last role can never be
// removed, and the admin role cannot be removed from its last holder.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID string) (*User, error) {
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, id := range user.RoleIDs {
		if id == roleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: role not assigned to user", ErrNotFound)
	}
	if len(user.RoleIDs) == 1 {
		return nil, fmt.Errorf("%w: users must keep at least one role", ErrConflict)
	}
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err == nil && role.Name == RoleAdmin {
		holders, err := s.store.Roles(ctx).UserCount(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if holders <= 1 {
			return nil, fmt.Errorf("%w: cannot remove the admin role from its last holder", ErrConflict)
		}
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := users.RemoveRole(ctx, userID, roleID); err != nil {
		return nil, err
	}
	user.RoleIDs = append(user.RoleIDs[:idx], user.RoleIDs[idx+1:]...)
	return user, nil
}

// --- helpers ----------------------------------------------------------------

// lastAdminHolder reports whether user is the only account holding the admin
// system role.
func (s *Service) lastAdminHolder(ctx context.Context, user *User) (bool, error) {
	adminRole, err := s.store.Roles(ctx).FindByName(ctx, RoleAdmin)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	holdsAdmin := false
	for _, id := range user.RoleIDs {
		if id == adminRole.ID {
			holdsAdmin = true
			break
		}
	}
	if !holdsAdmin {
		return false, nil
	}
	holders, err := s.store.Roles(ctx).UserCount(ctx, adminRole.ID)
	if err != nil {
		return false, err
	}
	return holders <= 1, nil
}

func (s *Service) validatePermissionIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.store.Permissions(ctx).FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return fmt.Errorf("%w: %d of %d permission ids do not exist", ErrInvalidInput, len(ids)-len(found), len(ids))
	}
	return nil
}

func (s *Service) validateRoleIDs(ctx context.Context, ids []string) error {
	roles := s.store.Roles(ctx)
	for _, id := range ids {
		if _, err := roles.Find(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: role %q does not exist", ErrInvalidInput, id)
			}
			return err
		}
	}
	return nil
}

func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
