package rbac

import "time"

// Category is the closed set of permission groupings.
type Category string

const (
	CategoryTasks       Category = "tasks"
	CategoryUsers       Category = "users"
	CategoryRoles       Category = "roles"
	CategoryPermissions Category = "permissions"
	CategoryAudit       Category = "audit"
	CategoryReports     Category = "reports"
	CategorySystem      Category = "system"
)

// Categories lists every valid permission category.
var Categories = []Category{
	CategoryTasks,
	CategoryUsers,
	CategoryRoles,
	CategoryPermissions,
	CategoryAudit,
	CategoryReports,
	CategorySystem,
}

// ValidCategory reports whether c belongs to the closed enumeration.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Permission is an atomic named capability in category:action form.
type Permission struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Category           Category  `json:"category"`
	IsSystemPermission bool      `json:"is_system_permission"`
	CreatedAt          time.Time `json:"created_at"`
}

// Role is a named, reusable bundle of permissions assignable to users.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PermissionIDs []string  `json:"permission_ids"`
	IsSystemRole  bool      `json:"is_system_role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is an account holding credentials and at least one role reference.
// The password hash is never serialized.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	RoleIDs      []string   `json:"role_ids"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
