package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sergiogc4/taskhub/internal/audit"
	"github.com/sergiogc4/taskhub/internal/obs"
	"github.com/sergiogc4/taskhub/internal/rbac"
	"github.com/sergiogc4/taskhub/internal/task"
)

// envelope is the standard JSON response shape for every endpoint.
type envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Permission string `json:"permission,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Success: true, Message: message})
}

func respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, envelope{
		Success:   false,
		Error:     msg,
		RequestID: requestIDFrom(r),
	})
}

// respondForbidden emits the 403 shape naming the missing permission.
func respondForbidden(w http.ResponseWriter, r *http.Request, permission string) {
	writeJSON(w, http.StatusForbidden, envelope{
		Success:    false,
		Error:      "you do not have permission to perform this action",
		Permission: permission,
		RequestID:  requestIDFrom(r),
	})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	respondError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleServiceError maps domain sentinels onto status codes. Unexpected
// failures are logged server-side and surfaced as a generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidInput), errors.Is(err, task.ErrInvalidInput):
		respondError(w, r, http.StatusBadRequest, userFacing(err))
	case errors.Is(err, rbac.ErrConflict):
		respondError(w, r, http.StatusBadRequest, userFacing(err))
	case errors.Is(err, rbac.ErrAlreadyExists):
		respondError(w, r, http.StatusConflict, userFacing(err))
	case errors.Is(err, rbac.ErrForbidden):
		respondError(w, r, http.StatusForbidden, userFacing(err))
	case errors.Is(err, rbac.ErrNotFound), errors.Is(err, task.ErrNotFound), errors.Is(err, audit.ErrNotFound):
		respondError(w, r, http.StatusNotFound, userFacing(err))
	case errors.Is(err, rbac.ErrUnauthorized), errors.Is(err, rbac.ErrInvalidToken):
		respondError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		obs.LogError("request failed", map[string]any{
			"request_id": requestIDFrom(r),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// userFacing strips the package prefix from sentinel-wrapped errors so
// responses read cleanly without leaking internals.
func userFacing(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"rbac: ", "task: ", "audit: "} {
		msg = strings.ReplaceAll(msg, prefix, "")
	}
	return msg
}
