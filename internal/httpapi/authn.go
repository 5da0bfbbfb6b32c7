package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stratix.org/internal/auth"
	"stratix.org/internal/authz"
	"stratix.org/internal/directory"
	"stratix.org/internal/superadmin"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/admin/v1/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withActor authenticates tenant-user requests: bearer token to claims,
// then a directory lookup so role and area changes take effect within the
// cache staleness window instead of at token expiry. Deactivated users and
// users of deactivated tenants are rejected here.
func (a *API) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || strings.HasPrefix(r.URL.Path, "/admin/") {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, tenantActive, err := a.dir.ResolveUser(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, r, http.StatusServiceUnavailable, "directory unavailable")
			return
		}
		actor := user.Actor(tenantActive)
		if !actor.Active {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := auth.ContextWithActor(r.Context(), actor)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireSuperadmin validates the opaque session token on /admin routes.
// The session, the account's active flag, and the IP allow-list are all
// re-checked per request.
func (a *API) requireSuperadmin(w http.ResponseWriter, r *http.Request) (superadmin.Superadmin, bool) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return superadmin.Superadmin{}, false
	}
	sa, _, err := a.superadmins.Validate(r.Context(), token, clientIP(r))
	if err != nil {
		if errors.Is(err, superadmin.ErrStoreUnavailable) {
			writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
			return superadmin.Superadmin{}, false
		}
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return superadmin.Superadmin{}, false
	}
	return sa, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func actorFromRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	a, found := auth.ActorFromContext(ctx)
	if !found {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return authz.Actor{}, false
	}
	return a, true
}
