package httpapi

import (
	"net/http"
	"time"

	"github.com/sergiogc4/taskhub/internal/rbac"
	"github.com/sergiogc4/taskhub/internal/task"
)

// authorizeTask lets owners through outright; anyone else needs full user
// administration and is rejected through the standard denial path.
// Reports whether the handler may proceed.
func (a *API) authorizeTask(w http.ResponseWriter, r *http.Request, principal rbac.Principal, t *task.Task) bool {
	if t.OwnerID == principal.User.ID {
		return true
	}
	held, responded := a.holdsPermission(w, r, principal, rbac.PermUsersManage)
	if responded {
		return false
	}
	if !held {
		a.denyPermission(w, r, rbac.PermUsersManage)
		return false
	}
	return true
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req struct {
		Title       string        `json:"title"`
		Description string        `json:"description"`
		Priority    task.Priority `json:"priority"`
		DueDate     *time.Time    `json:"dueDate"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	t, err := a.tasks.Create(r.Context(), principal.User.ID, req.Title, req.Description, req.Priority, req.DueDate)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), map[string]string{"title": t.Title})
	respondData(w, http.StatusCreated, t)
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var (
		tasks []*task.Task
		err   error
	)
	if r.URL.Query().Get("all") == "true" && principal.HasPermission(rbac.PermUsersManage) {
		tasks, err = a.tasks.List(r.Context())
	} else {
		tasks, err = a.tasks.ListByOwner(r.Context(), principal.User.ID)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, tasks)
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	t, err := a.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !a.authorizeTask(w, r, principal, t) {
		return
	}
	respondData(w, http.StatusOK, t)
}

func (a *API) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req struct {
		Title       *string          `json:"title"`
		Description *string          `json:"description"`
		Status      *task.TaskStatus `json:"status"`
		Priority    *task.Priority   `json:"priority"`
		DueDate     *time.Time       `json:"dueDate"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	before, err := a.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !a.authorizeTask(w, r, principal, before) {
		return
	}
	t, err := a.tasks.Apply(r.Context(), before.ID, task.Update{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), taskChanges(before, t))
	respondData(w, http.StatusOK, t)
}

func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	t, err := a.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !a.authorizeTask(w, r, principal, t) {
		return
	}
	if err := a.tasks.Delete(r.Context(), t.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), map[string]string{"title": t.Title})
	respondMessage(w, http.StatusOK, "task deleted")
}

func taskChanges(before, after *task.Task) map[string]string {
	changes := make(map[string]string)
	if before.Title != after.Title {
		changes["title"] = before.Title + " → " + after.Title
	}
	if before.Status != after.Status {
		changes["status"] = string(before.Status) + " → " + string(after.Status)
	}
	if before.Priority != after.Priority {
		changes["priority"] = string(before.Priority) + " → " + string(after.Priority)
	}
	return changes
}
