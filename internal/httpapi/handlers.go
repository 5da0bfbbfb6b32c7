package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"stratix.org/internal/directory"
	"stratix.org/internal/initiatives"
	"stratix.org/internal/obs"
	"stratix.org/internal/superadmin"
)

// ReadyProbe reports readiness (DB ping when a pool is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	readyProbe  ReadyProbe
	version     string
	dir         *directory.Cached
	superadmins *superadmin.Service
	initiatives initiatives.Store
}

func New(rp ReadyProbe, version string, dir *directory.Cached, admins *superadmin.Service, inits initiatives.Store) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		dir:         dir,
		superadmins: admins,
		initiatives: inits,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// superadmin plane
	a.mux.HandleFunc("/admin/v1/login", a.handleSuperadminLogin)
	a.mux.HandleFunc("/admin/v1/logout", a.handleSuperadminLogout)
	a.mux.HandleFunc("/admin/v1/session", a.handleSuperadminSession)
	a.mux.HandleFunc("/admin/v1/audit", a.handleAuditQuery)
	a.mux.HandleFunc("/admin/v1/tenants", a.handleTenants)
	a.mux.HandleFunc("/admin/v1/tenants/", a.handleTenantScoped)
	a.mux.HandleFunc("/admin/v1/superadmins/", a.handleSuperadminScoped)

	// tenant plane
	a.mux.HandleFunc("/v1/initiatives", a.handleInitiatives)
	a.mux.HandleFunc("/v1/initiatives/", a.handleInitiativeResource)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wires the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withActor(a.mux)
	h = LoggingJSON(h)
	h = RateLimit(h, 20, 10)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "stratix-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "stratix-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
