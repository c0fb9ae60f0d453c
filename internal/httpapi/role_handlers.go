package httpapi

import (
	"net/http"
	"strings"

	"github.com/sergiogc4/taskhub/internal/rbac"
)

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	includeSystem := r.URL.Query().Get("includeSystem") != "false"
	roles, err := a.rbac.ListRoles(r.Context(), includeSystem)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, roles)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		PermissionIDs []string `json:"permissionIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.rbac.CreateRole(r.Context(), req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), map[string]string{"name": role.Name})
	respondData(w, http.StatusCreated, role)
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.rbac.GetRole(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, role)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          *string   `json:"name"`
		Description   *string   `json:"description"`
		PermissionIDs *[]string `json:"permissionIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	before, err := a.rbac.GetRole(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	role, err := a.rbac.UpdateRole(r.Context(), before.ID, rbac.RoleUpdate{
		Name:          req.Name,
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), roleChanges(before, role))
	respondData(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := a.rbac.DeleteRole(r.Context(), r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "role deleted")
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.rbac.RolePermissions(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, perms)
}

func (a *API) handleAddRolePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PermissionID string `json:"permissionId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.rbac.AddPermissionToRole(r.Context(), r.PathValue("id"), req.PermissionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditAction(r.Context(), "roles:grant-permission")
	SetAuditChanges(r.Context(), map[string]string{"permission": "added " + req.PermissionID})
	respondData(w, http.StatusOK, role)
}

func (a *API) handleRemoveRolePermission(w http.ResponseWriter, r *http.Request) {
	permissionID := r.PathValue("permissionId")
	role, err := a.rbac.RemovePermissionFromRole(r.Context(), r.PathValue("id"), permissionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditAction(r.Context(), "roles:revoke-permission")
	SetAuditChanges(r.Context(), map[string]string{"permission": "removed " + permissionID})
	respondData(w, http.StatusOK, role)
}

func roleChanges(before, after *rbac.Role) map[string]string {
	changes := make(map[string]string)
	if before.Name != after.Name {
		changes["name"] = before.Name + " → " + after.Name
	}
	if before.Description != after.Description {
		changes["description"] = before.Description + " → " + after.Description
	}
	if len(before.PermissionIDs) != len(after.PermissionIDs) {
		changes["permissions"] = strings.Join(before.PermissionIDs, ",") + " → " + strings.Join(after.PermissionIDs, ",")
	}
	return changes
}
