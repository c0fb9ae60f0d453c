package httpapi

import (
	"net/http"
	"time"

	"github.com/sergiogc4/taskhub/internal/rbac"
)

const tokenTTL = 24 * time.Hour

type authResponse struct {
	Token       string     `json:"token"`
	User        *rbac.User `json:"user"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions"`
}

func (a *API) authResponseFor(r *http.Request, userID string) (*authResponse, error) {
	principal, err := a.rbac.Principal(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	token, err := rbac.GenerateToken(principal.User.ID, principal.RoleNames(), tokenTTL)
	if err != nil {
		return nil, err
	}
	return &authResponse{
		Token:       token,
		User:        principal.User,
		Roles:       principal.RoleNames(),
		Permissions: principal.PermissionNames(),
	}, nil
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditActor(r.Context(), user.ID, user.Name)
	resp, err := a.authResponseFor(r, user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditActor(r.Context(), user.ID, user.Name)
	resp, err := a.authResponseFor(r, user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"roles":       principal.RoleNames(),
		"permissions": principal.PermissionNames(),
	})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	before := principal.User
	user, err := a.rbac.UpdateUser(r.Context(), before.ID, rbac.UserUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	SetAuditChanges(r.Context(), profileChanges(before, user))
	respondData(w, http.StatusOK, user)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := rbac.VerifyPassword(principal.User.PasswordHash, req.CurrentPassword); err != nil {
		respondError(w, r, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	if _, err := a.rbac.UpdateUser(r.Context(), principal.User.ID, rbac.UserUpdate{
		Password: &req.NewPassword,
	}); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "password updated")
}

func profileChanges(before, after *rbac.User) map[string]string {
	changes := make(map[string]string)
	if before.Name != after.Name {
		changes["name"] = before.Name + " → " + after.Name
	}
	if before.Email != after.Email {
		changes["email"] = before.Email + " → " + after.Email
	}
	return changes
}
