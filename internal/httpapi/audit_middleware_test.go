package httpapi

import (
	"net/http"
	"testing"

	"github.com/sergiogc4/taskhub/internal/audit"
)

func TestAuditSuccessfulRequestRecordedOnce(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodPost, "/api/tasks", h.userToken, map[string]string{"title": "Write report"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	h.recorder.Wait()

	entries := h.audits.all()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != audit.StatusSuccess {
		t.Fatalf("expected success, got %q", e.Status)
	}
	if e.Action != "tasks:create" {
		t.Fatalf("expected action tasks:create, got %q", e.Action)
	}
	if e.ResourceType != audit.ResourceTask {
		t.Fatalf("expected task resource type, got %q", e.ResourceType)
	}
	if e.Resource != "/api/tasks" {
		t.Fatalf("expected resource path, got %q", e.Resource)
	}
	if e.UserID != h.userID || e.UserName != "Member" {
		t.Fatalf("expected actor snapshot, got %q/%q", e.UserID, e.UserName)
	}
	if e.Changes["title"] != "Write report" {
		t.Fatalf("expected title change recorded, got %v", e.Changes)
	}
	if e.Timestamp.IsZero() {
		t.Fatal("expected timestamp set")
	}
}

func TestAuditFailedRequestCarriesErrorMessage(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodPost, "/api/tasks", h.userToken, map[string]string{"title": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	h.recorder.Wait()

	entries := h.audits.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != audit.StatusError {
		t.Fatalf("expected error status, got %q", e.Status)
	}
	if e.ErrorMessage == "" {
		t.Fatal("expected error message copied from response body")
	}
}

func TestAuditFailedLoginRecordedAnonymously(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "member@example.com",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	h.recorder.Wait()

	entries := h.audits.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.UserID != "" {
		t.Fatalf("expected empty actor id, got %q", e.UserID)
	}
	if e.UserName != "anonymous" {
		t.Fatalf("expected anonymous actor, got %q", e.UserName)
	}
	if e.Status != audit.StatusError {
		t.Fatalf("expected error status, got %q", e.Status)
	}
	if e.ErrorMessage == "" {
		t.Fatal("expected error message from response body")
	}
}

func TestAuditSkipsRejectedAuthentication(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodGet, "/api/tasks", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	h.recorder.Wait()

	// The audit draft is built after authentication; a request rejected at
	// the token check never reaches it.
	if entries := h.audits.all(); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestAuditLoginLearnsActorIdentity(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "member@example.com",
		"password": "secret1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	h.recorder.Wait()

	entries := h.audits.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.UserID != h.userID {
		t.Fatalf("expected login entry attributed to %q, got %q", h.userID, e.UserID)
	}
	if e.Action != "auth:create" {
		t.Fatalf("expected auth action, got %q", e.Action)
	}
}

func TestAuditDenialNotDoubleRecorded(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodDelete, "/api/admin/roles/whatever", h.userToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	h.recorder.Wait()

	// The guard wrote the denial synchronously; the middleware must not add
	// a second entry for the same request.
	entries := h.audits.all()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(entries))
	}
}

func TestAuditSkipsNonAPIRoutes(t *testing.T) {
	h := newTestAPI(t)

	rr := h.do(http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	h.recorder.Wait()

	if entries := h.audits.all(); len(entries) != 0 {
		t.Fatalf("expected no audit entries for /healthz, got %d", len(entries))
	}
}

func TestInferAction(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/tasks", "tasks:read"},
		{http.MethodPost, "/api/tasks", "tasks:create"},
		{http.MethodPut, "/api/tasks/42", "tasks:update"},
		{http.MethodDelete, "/api/admin/users/42", "users:delete"},
		{http.MethodGet, "/api/admin/roles/1/permissions", "roles:read"},
		{http.MethodGet, "/api/admin/audit-logs", "audit:read"},
		{http.MethodPost, "/api/auth/login", "auth:create"},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		if got := inferAction(req); got != tc.want {
			t.Errorf("%s %s: expected %q, got %q", tc.method, tc.path, tc.want, got)
		}
	}
}
