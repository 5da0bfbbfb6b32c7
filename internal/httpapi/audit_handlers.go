package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"stratix.org/internal/audit"
)

// handleAuditQuery serves the read-only audit interface. There is no write
// or delete counterpart anywhere in the HTTP surface.
func (a *API) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireSuperadmin(w, r); !ok {
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		ActorID:    q.Get("actor_id"),
		Action:     q.Get("action"),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
		Cursor:     q.Get("cursor"),
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		filter.To = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := a.superadmins.Audit().Query(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "audit store unavailable")
		return
	}
	resp := map[string]any{
		"entries": entries,
	}
	if len(entries) > 0 {
		// Newest-first pages; the last id resumes the scan.
		resp["next_cursor"] = entries[len(entries)-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}
