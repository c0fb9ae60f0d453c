package rbac

// Well-known permission names referenced from code.
const (
	PermTasksCreate = "tasks:create"
	PermTasksRead   = "tasks:read"
	PermTasksUpdate = "tasks:update"
	PermTasksDelete = "tasks:delete"

	PermUsersManage       = "users:manage"
	PermRolesManage       = "roles:manage"
	PermPermissionsManage = "permissions:manage"

	PermAuditRead   = "audit:read"
	PermAuditExport = "audit:export"

	PermReportsView = "reports:view"
)

// SystemPermissions is the fixed catalog seeded before any authorization
// check can succeed. Seeding is idempotent: existing entries are left alone.
var SystemPermissions = []Permission{
	{Name: PermTasksCreate, Description: "Create tasks", Category: CategoryTasks, IsSystemPermission: true},
	{Name: PermTasksRead, Description: "View tasks", Category: CategoryTasks, IsSystemPermission: true},
	{Name: PermTasksUpdate, Description: "Update tasks", Category: CategoryTasks, IsSystemPermission: true},
	{Name: PermTasksDelete, Description: "Delete tasks", Category: CategoryTasks, IsSystemPermission: true},

	{Name: "users:create", Description: "Create users", Category: CategoryUsers, IsSystemPermission: true},
	{Name: "users:read", Description: "View users", Category: CategoryUsers, IsSystemPermission: true},
	{Name: "users:update", Description: "Update users", Category: CategoryUsers, IsSystemPermission: true},
	{Name: "users:delete", Description: "Delete users", Category: CategoryUsers, IsSystemPermission: true},
	{Name: PermUsersManage, Description: "Full user administration", Category: CategoryUsers, IsSystemPermission: true},

	{Name: "roles:create", Description: "Create roles", Category: CategoryRoles, IsSystemPermission: true},
	{Name: "roles:read", Description: "View roles", Category: CategoryRoles, IsSystemPermission: true},
	{Name: "roles:update", Description: "Update roles", Category: CategoryRoles, IsSystemPermission: true},
	{Name: "roles:delete", Description: "Delete roles", Category: CategoryRoles, IsSystemPermission: true},
	{Name: PermRolesManage, Description: "Full role administration", Category: CategoryRoles, IsSystemPermission: true},

	{Name: "permissions:create", Description: "Create permissions", Category: CategoryPermissions, IsSystemPermission: true},
	{Name: "permissions:read", Description: "View permissions", Category: CategoryPermissions, IsSystemPermission: true},
	{Name: "permissions:update", Description: "Update permissions", Category: CategoryPermissions, IsSystemPermission: true},
	{Name: "permissions:delete", Description: "Delete permissions", Category: CategoryPermissions, IsSystemPermission: true},
	{Name: PermPermissionsManage, Description: "Full permission administration", Category: CategoryPermissions, IsSystemPermission: true},

	{Name: PermAuditRead, Description: "View audit logs", Category: CategoryAudit, IsSystemPermission: true},
	{Name: PermAuditExport, Description: "Export audit logs", Category: CategoryAudit, IsSystemPermission: true},

	{Name: PermReportsView, Description: "View reports", Category: CategoryReports, IsSystemPermission: true},
	{Name: "reports:export", Description: "Export reports", Category: CategoryReports, IsSystemPermission: true},
	{Name: "reports:generate", Description: "Generate reports", Category: CategoryReports, IsSystemPermission: true},

	{Name: "system:settings", Description: "Manage system settings", Category: CategorySystem, IsSystemPermission: true},
	{Name: "system:monitor", Description: "Monitor system health", Category: CategorySystem, IsSystemPermission: true},
}

// System role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// baselineUserPermissions is the task subset granted to the default role.
var baselineUserPermissions = []string{
	PermTasksCreate,
	PermTasksRead,
	PermTasksUpdate,
	PermTasksDelete,
}

// starterRole describes a non-system role created on first seed only. Admins
// may rename or delete these afterwards; re-seeding does not resurrect them.
type starterRole struct {
	name        string
	description string
	permissions []string
}

var starterRoles = []starterRole{
	{name: "viewer", description: "Read-only access to tasks", permissions: []string{PermTasksRead}},
	{name: "editor", description: "Full task editing", permissions: baselineUserPermissions},
	{name: "moderator", description: "Task moderation and user visibility", permissions: []string{PermTasksRead, PermTasksUpdate, PermTasksDelete, "users:read"}},
	{name: "auditor", description: "Audit and report visibility", permissions: []string{PermAuditRead, PermReportsView}},
}
