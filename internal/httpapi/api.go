package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/sergiogc4/taskhub/internal/audit"
	"github.com/sergiogc4/taskhub/internal/obs"
	"github.com/sergiogc4/taskhub/internal/rbac"
	"github.com/sergiogc4/taskhub/internal/task"
)

// ReadyProbe reports whether the service's dependencies are reachable.
type ReadyProbe func(ctx context.Context) error

// API is the HTTP surface over the rbac, task and audit services.
type API struct {
	mux      *http.ServeMux
	rbac     *rbac.Service
	tasks    *task.Service
	audits   *audit.Service
	recorder *audit.Recorder

	readyProbe ReadyProbe
	version    string
}

// Config collects the API's collaborators.
type Config struct {
	RBAC     *rbac.Service
	Tasks    *task.Service
	Audits   *audit.Service
	Recorder *audit.Recorder

	// ReadyProbe backs /readyz. Optional; nil means always ready.
	ReadyProbe ReadyProbe
	Version    string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		rbac:       cfg.RBAC,
		tasks:      cfg.Tasks,
		audits:     cfg.Audits,
		recorder:   cfg.Recorder,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}
	a.routes()
	return a
}

// auditReporting gates the aggregated audit views: full audit access or the
// report-only grant both qualify.
var auditReporting = []string{rbac.PermAuditRead, rbac.PermReportsView}

func (a *API) routes() {
	m := a.mux

	m.HandleFunc("GET /healthz", a.handleHealthz)
	m.HandleFunc("GET /readyz", a.handleReadyz)
	m.Handle("GET /metrics", obs.Handler())

	m.HandleFunc("POST /api/auth/register", a.handleRegister)
	m.HandleFunc("POST /api/auth/login", a.handleLogin)
	m.HandleFunc("GET /api/auth/me", a.handleMe)
	m.HandleFunc("PUT /api/auth/profile", a.handleUpdateProfile)
	m.HandleFunc("PUT /api/auth/password", a.handleChangePassword)

	m.HandleFunc("POST /api/tasks", a.requirePermission(rbac.PermTasksCreate, a.handleCreateTask))
	m.HandleFunc("GET /api/tasks", a.requirePermission(rbac.PermTasksRead, a.handleListTasks))
	m.HandleFunc("GET /api/tasks/{id}", a.requirePermission(rbac.PermTasksRead, a.handleGetTask))
	m.HandleFunc("PUT /api/tasks/{id}", a.requirePermission(rbac.PermTasksUpdate, a.handleUpdateTask))
	m.HandleFunc("DELETE /api/tasks/{id}", a.requirePermission(rbac.PermTasksDelete, a.handleDeleteTask))

	m.HandleFunc("GET /api/admin/users", a.requirePermission(rbac.PermUsersManage, a.handleListUsers))
	m.HandleFunc("POST /api/admin/users", a.requirePermission(rbac.PermUsersManage, a.handleCreateUser))
	m.HandleFunc("GET /api/admin/users/{id}", a.requirePermission(rbac.PermUsersManage, a.handleGetUser))
	m.HandleFunc("PUT /api/admin/users/{id}", a.requirePermission(rbac.PermUsersManage, a.handleUpdateUser))
	m.HandleFunc("DELETE /api/admin/users/{id}", a.requirePermission(rbac.PermUsersManage, a.handleDeleteUser))
	m.HandleFunc("POST /api/admin/users/{id}/roles", a.requirePermission(rbac.PermUsersManage, a.handleAssignRole))
	m.HandleFunc("DELETE /api/admin/users/{id}/roles/{roleId}", a.requirePermission(rbac.PermUsersManage, a.handleRemoveRole))

	m.HandleFunc("GET /api/admin/roles", a.requirePermission(rbac.PermRolesManage, a.handleListRoles))
	m.HandleFunc("POST /api/admin/roles", a.requirePermission(rbac.PermRolesManage, a.handleCreateRole))
	m.HandleFunc("GET /api/admin/roles/{id}", a.requirePermission(rbac.PermRolesManage, a.handleGetRole))
	m.HandleFunc("PUT /api/admin/roles/{id}", a.requirePermission(rbac.PermRolesManage, a.handleUpdateRole))
	m.HandleFunc("DELETE /api/admin/roles/{id}", a.requirePermission(rbac.PermRolesManage, a.handleDeleteRole))
	m.HandleFunc("GET /api/admin/roles/{id}/permissions", a.requirePermission(rbac.PermRolesManage, a.handleRolePermissions))
	m.HandleFunc("POST /api/admin/roles/{id}/permissions", a.requirePermission(rbac.PermRolesManage, a.handleAddRolePermission))
	m.HandleFunc("DELETE /api/admin/roles/{id}/permissions/{permissionId}", a.requirePermission(rbac.PermRolesManage, a.handleRemoveRolePermission))

	m.HandleFunc("GET /api/admin/permissions", a.requirePermission(rbac.PermPermissionsManage, a.handleListPermissions))
	m.HandleFunc("GET /api/admin/permissions/categories", a.requirePermission(rbac.PermPermissionsManage, a.handleListCategories))
	m.HandleFunc("POST /api/admin/permissions", a.requirePermission(rbac.PermPermissionsManage, a.handleCreatePermission))
	m.HandleFunc("GET /api/admin/permissions/{id}", a.requirePermission(rbac.PermPermissionsManage, a.handleGetPermission))
	m.HandleFunc("PUT /api/admin/permissions/{id}", a.requirePermission(rbac.PermPermissionsManage, a.handleUpdatePermission))
	m.HandleFunc("DELETE /api/admin/permissions/{id}", a.requirePermission(rbac.PermPermissionsManage, a.handleDeletePermission))

	m.HandleFunc("GET /api/admin/audit-logs", a.requirePermission(rbac.PermAuditRead, a.handleListAuditLogs))
	m.HandleFunc("GET /api/admin/audit-logs/stats", a.requireAnyPermission(auditReporting, a.handleAuditStats))
	m.HandleFunc("GET /api/admin/audit-logs/top-actions", a.requireAnyPermission(auditReporting, a.handleTopActions))
	m.HandleFunc("GET /api/admin/audit-logs/top-users", a.requireAnyPermission(auditReporting, a.handleTopUsers))
	m.HandleFunc("GET /api/admin/audit-logs/user/{userId}", a.requirePermission(rbac.PermAuditRead, a.handleAuditLogsByUser))
	m.HandleFunc("GET /api/admin/audit-logs/{id}", a.requirePermission(rbac.PermAuditRead, a.handleGetAuditLog))
}

// Handler assembles the middleware chain around the router. Order matters:
// request id and logging wrap everything, authentication runs before the
// audit middleware so denial records carry actor identity.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAudit(h)
	h = a.withAuth(h)
	h = RateLimit(h, 60, 30)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.readyProbe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.readyProbe(ctx); err != nil {
			obs.LogError("readiness probe failed", map[string]any{"error": err.Error()})
			respondError(w, r, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"})
}
