package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"stratix.org/internal/audit"
	"stratix.org/internal/authz"
	"stratix.org/internal/initiatives"
	"stratix.org/internal/obs"
)

type createInitiativeRequest struct {
	Title     string   `json:"title"`
	AreaID    string   `json:"area_id"`
	Assignees []string `json:"assignees"`
}

type updateInitiativeRequest struct {
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Assignees []string `json:"assignees"`
}

type updateUserRoleRequest struct {
	Role   string `json:"role"`
	AreaID string `json:"area_id"`
}

func (a *API) handleInitiatives(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r.Context(), w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		filter, err := authz.ListFilter(actor)
		if err != nil {
			denyAuthz(w, r, actor, err)
			return
		}
		obs.ObservePolicyDecision(string(actor.Role), "allow")
		items, err := a.initiatives.List(r.Context(), filter)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "listing failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"initiatives": items})
	case http.MethodPost:
		var req createInitiativeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			writeError(w, r, http.StatusBadRequest, "title is required")
			return
		}
		in := initiatives.Initiative{
			TenantID:  actor.TenantID,
			AreaID:    req.AreaID,
			OwnerID:   actor.UserID,
			Assignees: req.Assignees,
			Title:     req.Title,
			Status:    "draft",
		}
		if !a.authorize(w, r, actor, authz.ActionWrite, in.Resource()) {
			return
		}
		created, err := a.initiatives.Put(r.Context(), in)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "write failed")
			return
		}
		a.auditUser(r, actor, "initiative.create", created.ID, map[string]string{"title": created.Title})
		w.Header().Set("Location", fmt.Sprintf("/v1/initiatives/%s", created.ID))
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleInitiativeResource(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r.Context(), w, r)
	if !ok {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/initiatives/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	in, err := a.initiatives.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, initiatives.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "lookup failed")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.authorize(w, r, actor, authz.ActionRead, in.Resource()) {
			return
		}
		writeJSON(w, http.StatusOK, in)
	case http.MethodPut:
		if !a.authorize(w, r, actor, authz.ActionWrite, in.Resource()) {
			return
		}
		var req updateInitiativeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if title := strings.TrimSpace(req.Title); title != "" {
			in.Title = title
		}
		if req.Status != "" {
			in.Status = req.Status
		}
		if req.Assignees != nil {
			in.Assignees = req.Assignees
		}
		updated, err := a.initiatives.Put(r.Context(), in)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "write failed")
			return
		}
		a.auditUser(r, actor, "initiative.update", updated.ID, nil)
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if !a.authorize(w, r, actor, authz.ActionDelete, in.Resource()) {
			return
		}
		if err := a.initiatives.Delete(r.Context(), id); err != nil {
			writeError(w, r, http.StatusInternalServerError, "delete failed")
			return
		}
		a.auditUser(r, actor, "initiative.delete", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleUserScoped covers role and area reassignment by tenant-wide roles.
// The directory write path invalidates the resolver cache, so the change
// takes effect on the next request rather than after the staleness window.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r.Context(), w, r)
	if !ok {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "role" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	userID := parts[0]

	target, err := a.dir.Store().GetUser(r.Context(), userID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	// User records are tenant-wide resources; only CEO and Admin pass.
	if !a.authorize(w, r, actor, authz.ActionWrite, authz.Resource{TenantID: target.TenantID}) {
		return
	}

	var req updateUserRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.dir.UpdateUserRole(r.Context(), userID, req.Role, req.AreaID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.auditUser(r, actor, "user.role.update", updated.ID, map[string]string{
		"role":    updated.Role,
		"area_id": updated.AreaID,
	})
	writeJSON(w, http.StatusOK, updated)
}

// authorize runs the policy and writes the response on deny. Both denial
// kinds collapse to one external shape; they stay distinct in metrics and
// logs.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, actor authz.Actor, action authz.Action, res authz.Resource) bool {
	decision, err := authz.Authorize(actor, action, res)
	if err != nil {
		denyAuthz(w, r, actor, err)
		return false
	}
	if !decision.Allow {
		denyAuthz(w, r, actor, authz.ErrForbidden)
		return false
	}
	obs.ObservePolicyDecision(string(actor.Role), "allow")
	return true
}

func denyAuthz(w http.ResponseWriter, r *http.Request, actor authz.Actor, err error) {
	outcome := "deny"
	if errors.Is(err, authz.ErrMisconfiguredActor) {
		outcome = "misconfigured"
	}
	obs.ObservePolicyDecision(string(actor.Role), outcome)
	obs.LogRequest(map[string]any{
		"type":       "authz",
		"outcome":    outcome,
		"user_id":    actor.UserID,
		"tenant_id":  actor.TenantID,
		"role":       string(actor.Role),
		"path":       r.URL.Path,
		"request_id": RequestIDFromContext(r.Context()),
	})
	writeError(w, r, http.StatusForbidden, "forbidden")
}

// auditUser records tenant-plane mutations. Reads are not audited; a lost
// entry here logs but does not roll back the already-applied change.
func (a *API) auditUser(r *http.Request, actor authz.Actor, action, targetID string, metadata map[string]string) {
	err := a.superadmins.Audit().Append(r.Context(), audit.Entry{
		ActorType:  audit.ActorUser,
		ActorID:    actor.UserID,
		Action:     action,
		TargetType: targetTypeFor(action),
		TargetID:   targetID,
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
		Metadata:   metadata,
	})
	if err != nil {
		obs.LogRequest(map[string]any{
			"type":  "audit_error",
			"event": action,
			"error": err.Error(),
		})
	}
}

func targetTypeFor(action string) string {
	if i := strings.IndexByte(action, '.'); i > 0 {
		return action[:i]
	}
	return action
}
