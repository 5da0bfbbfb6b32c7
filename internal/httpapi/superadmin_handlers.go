package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"stratix.org/internal/audit"
	"stratix.org/internal/directory"
	"stratix.org/internal/superadmin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createTenantRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleSuperadminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.superadmins.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		if retryAfter, ok := superadmin.IsRateLimited(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, r, http.StatusTooManyRequests, "too many attempts")
			return
		}
		if errors.Is(err, superadmin.ErrStoreUnavailable) || errors.Is(err, audit.ErrUnavailable) {
			writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		// Unknown email, bad password, inactive account, and allow-list
		// mismatch all land here with one externally visible shape.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}

func (a *API) handleSuperadminLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := a.superadmins.Logout(r.Context(), token, clientIP(r), r.UserAgent()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSuperadminSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	sa, sess, err := a.superadmins.Validate(r.Context(), token, clientIP(r))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"superadmin": sa,
		"expires_at": sess.ExpiresAt,
	})
}

func (a *API) handleTenants(w http.ResponseWriter, r *http.Request) {
	sa, ok := a.requireSuperadmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		tenants, err := a.dir.Store().ListTenants(r.Context())
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "directory operation failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
	case http.MethodPost:
		var req createTenantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Subdomain = strings.TrimSpace(strings.ToLower(req.Subdomain))
		if req.Name == "" || req.Subdomain == "" {
			writeError(w, r, http.StatusBadRequest, "name and subdomain are required")
			return
		}
		tenant, err := a.dir.Store().CreateTenant(r.Context(), directory.Tenant{
			Name:      req.Name,
			Subdomain: req.Subdomain,
			Active:    true,
		})
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		if !a.auditAdmin(w, r, sa, "tenant.create", "tenant", tenant.ID, map[string]string{
			"subdomain": tenant.Subdomain,
		}) {
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/admin/v1/tenants/%s", tenant.ID))
		writeJSON(w, http.StatusCreated, tenant)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTenantScoped(w http.ResponseWriter, r *http.Request) {
	sa, ok := a.requireSuperadmin(w, r)
	if !ok {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/v1/tenants/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	tenantID := parts[0]
	var active bool
	var action string
	switch parts[1] {
	case "deactivate":
		active, action = false, "tenant.deactivate"
	case "activate":
		active, action = true, "tenant.activate"
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	// Audit precedes the mutation so a lost trail blocks the change.
	if !a.auditAdmin(w, r, sa, action, "tenant", tenantID, nil) {
		return
	}
	if err := a.dir.SetTenantActive(r.Context(), tenantID, active); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSuperadminScoped(w http.ResponseWriter, r *http.Request) {
	sa, ok := a.requireSuperadmin(w, r)
	if !ok {
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/v1/superadmins/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	targetID := parts[0]
	switch parts[1] {
	case "deactivate":
		err := a.superadmins.Deactivate(r.Context(), sa.ID, targetID, clientIP(r), r.UserAgent())
		if err != nil {
			handleSuperadminError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "password":
		var req resetPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		err := a.superadmins.ResetPassword(r.Context(), sa.ID, targetID, req.Password, clientIP(r), r.UserAgent())
		if err != nil {
			handleSuperadminError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// auditAdmin appends a superadmin audit entry and fails the request when
// the trail cannot be written.
func (a *API) auditAdmin(w http.ResponseWriter, r *http.Request, sa superadmin.Superadmin, action, targetType, targetID string, metadata map[string]string) bool {
	err := a.superadmins.Audit().Append(r.Context(), audit.Entry{
		ActorType:  audit.ActorSuperadmin,
		ActorID:    sa.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
		Metadata:   metadata,
	})
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
		return false
	}
	return true
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "directory operation failed")
	}
}

func handleSuperadminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, superadmin.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, superadmin.ErrStoreUnavailable), errors.Is(err, audit.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}
