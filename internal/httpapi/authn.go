package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sergiogc4/taskhub/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/healthz",
	"/readyz",
	"/metrics",
}

// withAuth resolves the bearer token into a principal with fresh effective
// permissions and attaches it to the context. Public paths pass through
// anonymously.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := rbac.ParseAndValidate(token)
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		principal, err := a.rbac.Principal(r.Context(), claims.Subject)
		if err != nil {
			switch {
			case errors.Is(err, rbac.ErrNotFound):
				respondError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				handleServiceError(w, r, err)
			}
			return
		}
		if !principal.User.IsActive {
			respondError(w, r, http.StatusUnauthorized, "account is deactivated")
			return
		}

		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
