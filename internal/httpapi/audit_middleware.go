package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/sergiogc4/taskhub/internal/audit"
	"github.com/sergiogc4/taskhub/internal/rbac"
)

// auditDraft carries the in-progress audit record through the request's
// lifetime. Exactly one entry is persisted per request: the authorization
// guard writes denials synchronously and marks the draft recorded so the
// deferred finalize step does not write a second entry.
type auditDraft struct {
	mu       sync.Mutex
	entry    *audit.Entry
	recorded bool
}

type auditDraftContextKey struct{}

func draftFrom(ctx context.Context) (*auditDraft, bool) {
	v, ok := ctx.Value(auditDraftContextKey{}).(*auditDraft)
	return v, ok && v != nil
}

// SetAuditAction overrides the generic verb-derived action label, for
// clearer audit semantics on custom routes.
func SetAuditAction(ctx context.Context, action string) {
	if d, ok := draftFrom(ctx); ok {
		d.mu.Lock()
		d.entry.Action = action
		d.mu.Unlock()
	}
}

// SetAuditChanges attaches a before/after field diff to the audit record.
func SetAuditChanges(ctx context.Context, changes map[string]string) {
	if len(changes) == 0 {
		return
	}
	if d, ok := draftFrom(ctx); ok {
		d.mu.Lock()
		d.entry.Changes = changes
		d.mu.Unlock()
	}
}

// SetAuditActor fills in actor identity learned inside a handler, e.g. after
// a successful login on an anonymous request.
func SetAuditActor(ctx context.Context, userID, userName string) {
	if d, ok := draftFrom(ctx); ok {
		d.mu.Lock()
		d.entry.UserID = userID
		d.entry.UserName = userName
		d.mu.Unlock()
	}
}

// bodyCapture buffers a bounded prefix of the response body so the audit
// record can pick up the envelope's error message.
type bodyCapture struct {
	http.ResponseWriter
	code int
	buf  bytes.Buffer
}

const bodyCaptureLimit = 8 << 10

func (w *bodyCapture) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyCapture) Write(p []byte) (int, error) {
	if w.buf.Len() < bodyCaptureLimit {
		remain := bodyCaptureLimit - w.buf.Len()
		if len(p) <= remain {
			w.buf.Write(p)
		} else {
			w.buf.Write(p[:remain])
		}
	}
	return w.ResponseWriter.Write(p)
}

// withAudit observes the outcome of every API request. The draft record is
// built before the handler runs; the finalized entry is persisted after the
// response without blocking it.
func (a *API) withAudit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		entry := &audit.Entry{
			Action:       inferAction(r),
			Resource:     r.URL.Path,
			ResourceType: inferResourceType(r.URL.Path),
			IPAddress:    clientIP(r),
			UserAgent:    r.Header.Get("User-Agent"),
		}
		if principal, ok := rbac.PrincipalFromContext(r.Context()); ok {
			entry.UserID = principal.User.ID
			entry.UserName = principal.User.Name
		}
		draft := &auditDraft{entry: entry}
		ctx := context.WithValue(r.Context(), auditDraftContextKey{}, draft)

		bc := &bodyCapture{ResponseWriter: w, code: 200}
		next.ServeHTTP(bc, r.WithContext(ctx))

		draft.mu.Lock()
		defer draft.mu.Unlock()
		if draft.recorded {
			return
		}
		draft.recorded = true
		if bc.code >= 200 && bc.code < 300 {
			entry.Status = audit.StatusSuccess
		} else {
			entry.Status = audit.StatusError
			entry.ErrorMessage = errorFromBody(bc.buf.Bytes())
		}
		a.recorder.RecordAsync(entry)
	})
}

// recordDenial writes the denied attempt synchronously before the 403
// response returns, so the attempt is never lost.
func (a *API) recordDenial(ctx context.Context, permission string) {
	d, ok := draftFrom(ctx)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recorded {
		return
	}
	d.recorded = true
	d.entry.Status = audit.StatusError
	d.entry.ErrorMessage = "Permission denied: " + permission
	_ = a.recorder.Record(ctx, d.entry)
}

func errorFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Error
}

// inferAction derives a resource:verb label from the request shape.
// Handlers may override it with SetAuditAction.
func inferAction(r *http.Request) string {
	label := actionLabel(inferResourceType(r.URL.Path), r.URL.Path)
	switch r.Method {
	case http.MethodGet:
		return label + ":read"
	case http.MethodPost:
		return label + ":create"
	case http.MethodPut, http.MethodPatch:
		return label + ":update"
	case http.MethodDelete:
		return label + ":delete"
	default:
		return label + ":" + strings.ToLower(r.Method)
	}
}

func actionLabel(rt audit.ResourceType, path string) string {
	if strings.HasPrefix(path, "/api/auth/") {
		return "auth"
	}
	switch rt {
	case audit.ResourceTask:
		return "tasks"
	case audit.ResourceUser:
		return "users"
	case audit.ResourceRole:
		return "roles"
	case audit.ResourcePermission:
		return "permissions"
	case audit.ResourceAudit:
		return "audit"
	case audit.ResourceReport:
		return "reports"
	case audit.ResourceSystem:
		return "system"
	default:
		return "other"
	}
}

func inferResourceType(path string) audit.ResourceType {
	path = strings.ToLower(path)
	switch {
	case strings.Contains(path, "/tasks"):
		return audit.ResourceTask
	case strings.Contains(path, "/audit"):
		return audit.ResourceAudit
	case strings.Contains(path, "/users"), strings.Contains(path, "/auth"):
		return audit.ResourceUser
	case strings.Contains(path, "/roles"):
		return audit.ResourceRole
	case strings.Contains(path, "/permissions"):
		return audit.ResourcePermission
	case strings.Contains(path, "/reports"):
		return audit.ResourceReport
	default:
		return audit.ResourceOther
	}
}
