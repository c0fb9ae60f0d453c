package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sergiogc4/taskhub/internal/audit"
)

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := audit.Status(q.Get("status"))
	if status != "" && status != audit.StatusSuccess && status != audit.StatusError {
		respondError(w, r, http.StatusBadRequest, "status must be success or error")
		return
	}
	f := audit.Filter{
		UserID:   q.Get("userId"),
		Action:   q.Get("action"),
		Resource: q.Get("resource"),
		Status:   status,
		Page:     intParam(q.Get("page")),
		Limit:    intParam(q.Get("limit")),
	}
	var ok bool
	if f.From, ok = timeParam(q.Get("from")); !ok {
		respondError(w, r, http.StatusBadRequest, "from must be RFC 3339")
		return
	}
	if f.To, ok = timeParam(q.Get("to")); !ok {
		respondError(w, r, http.StatusBadRequest, "to must be RFC 3339")
		return
	}

	page, err := a.audits.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, page)
}

func (a *API) handleAuditLogsByUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.audits.ByUser(r.Context(), r.PathValue("userId"), intParam(q.Get("page")), intParam(q.Get("limit")))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, page)
}

func (a *API) handleGetAuditLog(w http.ResponseWriter, r *http.Request) {
	entry, err := a.audits.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, entry)
}

func (a *API) handleTopActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := timeParam(q.Get("from"))
	if !ok {
		respondError(w, r, http.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, ok := timeParam(q.Get("to"))
	if !ok {
		respondError(w, r, http.StatusBadRequest, "to must be RFC 3339")
		return
	}
	actions, err := a.audits.TopActions(r.Context(), from, to, intParam(q.Get("limit")))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, actions)
}

func (a *API) handleTopUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := timeParam(q.Get("from"))
	if !ok {
		respondError(w, r, http.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, ok := timeParam(q.Get("to"))
	if !ok {
		respondError(w, r, http.StatusBadRequest, "to must be RFC 3339")
		return
	}
	users, err := a.audits.TopUsers(r.Context(), from, to, intParam(q.Get("limit")))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, users)
}

func (a *API) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.audits.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}

func intParam(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func timeParam(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
