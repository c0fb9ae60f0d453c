package httpapi

import (
	"net/http"

	"github.com/sergiogc4/taskhub/internal/rbac"
)

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	category := rbac.Category(r.URL.Query().Get("category"))
	if category != "" && !rbac.ValidCategory(category) {
		respondError(w, r, http.StatusBadRequest, "unknown category: "+string(category))
		return
	}
	perms, err := a.rbac.ListPermissions(r.Context(), category)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, perms)
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, rbac.Categories)
}

func (a *API) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string        `json:"name"`
		Description string        `json:"description"`
		Category    rbac.Category `json:"category"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.rbac.CreatePermission(r.Context(), req.Name, req.Description, req.Category)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), map[string]string{"name": perm.Name})
	respondData(w, http.StatusCreated, perm)
}

func (a *API) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := a.rbac.GetPermission(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, perm)
}

func (a *API) handleUpdatePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string        `json:"name"`
		Description *string        `json:"description"`
		Category    *rbac.Category `json:"category"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := a.rbac.UpdatePermission(r.Context(), r.PathValue("id"), rbac.PermissionUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, perm)
}

func (a *API) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	if err := a.rbac.DeletePermission(r.Context(), r.PathValue("id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "permission deleted")
}
