package rbac

import (
	"context"
	"time"
)

// Store describes persistence operations required by the RBAC subsystem.
type Store interface {
	Permissions(ctx context.Context) PermissionStore
	Roles(ctx context.Context) RoleStore
	Users(ctx context.Context) UserStore
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Create(ctx context.Context, p *Permission) error
	Find(ctx context.Context, id string) (*Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	// FindByIDs returns the permissions whose ids exist; missing ids are
	// simply absent from the result, never an error.
	FindByIDs(ctx context.Context, ids []string) ([]*Permission, error)
	List(ctx context.Context, category Category) ([]*Permission, error)
	Update(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, id string) error
	// Ensure creates any of the given permissions that do not yet exist.
	Ensure(ctx context.Context, perms []Permission) error
}

// RoleStore manages roles and their permission lists.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context, includeSystem bool) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error
	// SetPermissions replaces the role's permission list atomically.
	SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	// PermissionsForRole resolves the role's permission references. Dangling
	// references resolve to nothing.
	PermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error)
	// UserCount reports how many users currently reference the role.
	UserCount(ctx context.Context, roleID string) (int, error)
}

// UserStore manages user accounts and role assignments.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	AssignRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}
