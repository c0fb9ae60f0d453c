package rbac

import "context"

type principalContextKey struct{}
type permissionContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithCheckedPermission records the permission the authorization
// middleware verified, for downstream audit use.
func ContextWithCheckedPermission(ctx context.Context, permission string) context.Context {
	if permission == "" {
		return ctx
	}
	return context.WithValue(ctx, permissionContextKey{}, permission)
}

// CheckedPermissionFromContext returns the permission verified for this
// request, if any.
func CheckedPermissionFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(permissionContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
