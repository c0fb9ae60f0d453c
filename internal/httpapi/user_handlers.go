package httpapi

import (
	"net/http"

	"github.com/sergiogc4/taskhub/internal/rbac"
)

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.rbac.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, users)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string   `json:"name"`
		Email    string   `json:"email"`
		Password string   `json:"password"`
		RoleIDs  []string `json:"roleIds"`
		IsActive *bool    `json:"isActive"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user, err := a.rbac.CreateUser(r.Context(), req.Name, req.Email, req.Password, req.RoleIDs, active)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), map[string]string{"email": user.Email})
	respondData(w, http.StatusCreated, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.rbac.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
		IsActive *bool   `json:"isActive"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	before, err := a.rbac.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	user, err := a.rbac.UpdateUser(r.Context(), before.ID, rbac.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IsActive: req.IsActive,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), userChanges(before, user))
	respondData(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if principal.User.ID == r.PathValue("id") {
		respondError(w, r, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	if err := a.rbac.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "user deleted")
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID string `json:"roleId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.AssignRole(r.Context(), r.PathValue("id"), req.RoleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditAction(r.Context(), "users:assign-role")
	SetAuditChanges(r.Context(), map[string]string{"role": "assigned " + req.RoleID})
	respondData(w, http.StatusOK, user)
}

func (a *API) handleRemoveRole(w http.ResponseWriter, r *http.Request) {
	roleID := r.PathValue("roleId")
	user, err := a.rbac.RemoveRole(r.Context(), r.PathValue("id"), roleID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditAction(r.Context(), "users:remove-role")
	SetAuditChanges(r.Context(), map[string]string{"role": "removed " + roleID})
	respondData(w, http.StatusOK, user)
}

func userChanges(before, after *rbac.User) map[string]string {
	changes := make(map[string]string)
	if before.Name != after.Name {
		changes["name"] = before.Name + " → " + after.Name
	}
	if before.Email != after.Email {
		changes["email"] = before.Email + " → " + after.Email
	}
	if before.IsActive != after.IsActive {
		changes["isActive"] = boolString(before.IsActive) + " → " + boolString(after.IsActive)
	}
	return changes
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
