package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/api/tasks":                        "/api/tasks",
		"/api/tasks/01J5YX":                 "/api/tasks/:id",
		"/api/tasks/01J5YX?all=true":        "/api/tasks/:id",
		"/api/admin/users/u1/roles":         "/api/admin/users/:id/roles",
		"/api/admin/users/u1/roles/r2":      "/api/admin/users/:id/roles/:id",
		"/api/admin/roles/r1/permissions/p": "/api/admin/roles/:id/permissions/:id",
		"/api/admin/audit-logs/user/u9":     "/api/admin/audit-logs/user/:id",
		"/api/admin/audit-logs/stats":       "/api/admin/audit-logs/stats",
		"/api/admin/audit-logs/top-actions": "/api/admin/audit-logs/top-actions",
		"/api/auth/login":                   "/api/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
