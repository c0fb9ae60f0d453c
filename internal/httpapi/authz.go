package httpapi

import (
	"errors"
	"net/http"

	"github.com/sergiogc4/taskhub/internal/obs"
	"github.com/sergiogc4/taskhub/internal/rbac"
)

// requirePermission gates a handler behind a named permission. The check is
// made against the permission registry first so a typo in a route guard
// surfaces as a client-visible 400 rather than a silent universal denial.
func (a *API) requirePermission(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := rbac.PrincipalFromContext(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		held, responded := a.holdsPermission(w, r, principal, permission)
		if responded {
			return
		}
		if !held {
			a.denyPermission(w, r, permission)
			return
		}
		ctx := rbac.ContextWithCheckedPermission(r.Context(), permission)
		next(w, r.WithContext(ctx))
	}
}

// requireAnyPermission permits the request when the principal holds at least
// one of the listed permissions. The denial names the first permission,
// which callers order as the primary grant for the route.
func (a *API) requireAnyPermission(permissions []string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := rbac.PrincipalFromContext(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, p := range permissions {
			held, responded := a.holdsPermission(w, r, principal, p)
			if responded {
				return
			}
			if held {
				ctx := rbac.ContextWithCheckedPermission(r.Context(), p)
				next(w, r.WithContext(ctx))
				return
			}
		}
		a.denyPermission(w, r, permissions[0])
	}
}

// holdsPermission validates the permission name against the registry and
// reports whether the principal holds it. When the lookup itself fails the
// response is written here and responded is true.
func (a *API) holdsPermission(w http.ResponseWriter, r *http.Request, principal rbac.Principal, permission string) (held, responded bool) {
	if _, err := a.rbac.PermissionByName(r.Context(), permission); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			respondError(w, r, http.StatusBadRequest, "unknown permission: "+permission)
			return false, true
		}
		obs.LogError("permission lookup failed", map[string]any{
			"permission": permission,
			"error":      err.Error(),
		})
		respondError(w, r, http.StatusInternalServerError, "internal server error")
		return false, true
	}
	return principal.HasPermission(permission), false
}

// denyPermission is the single 403 path: metrics counter, synchronous audit
// record, enveloped response naming the missing permission.
func (a *API) denyPermission(w http.ResponseWriter, r *http.Request, permission string) {
	obs.AuthzDenied(permission)
	a.recordDenial(r.Context(), permission)
	respondForbidden(w, r, permission)
}
