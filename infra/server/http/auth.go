package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/guildview/panel-service/internal/domain/model"
	"github.com/guildview/panel-service/internal/service"
)

type contextKey string

const (
	// identityKey is the key used to store/retrieve the caller's Identity
	identityKey contextKey = "panel_identity"
)

// BearerToken pulls the access token from the Authorization header, falling
// back to the token query parameter for browser WebSocket clients, which
// cannot set headers on the upgrade request.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

// Authenticate creates a middleware that resolves the request's identity
// before any handler runs.
func Authenticate(auther service.Auther) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// [PRE_AUTH] Validate identity before any work happens
			identity, err := auther.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// [ENRICHMENT] Inject the identity for downstream handlers
			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin guards operator-only routes. Mount after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok || !identity.Grants.Admin {
			http.Error(w, "admin grant required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFrom is a helper to extract the identity from context safely.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(model.Identity)
	return identity, ok
}
