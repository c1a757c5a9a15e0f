// Package middleware provides the authentication and observability
// middleware of the HTTP gateway. Permission checks stay in the handlers
// as explicit guards; only credential resolution lives here.
package middleware

import (
	"net/http"

	"github.com/marmos91/syncbox/internal/api/handlers"
	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/pkg/errdefs"
)

// APIKeyHeader is the authentication header of the request transport.
const APIKeyHeader = "X-API-Key"

// Authenticate resolves the X-API-Key header to an identity and injects
// it into the request context. Requests without a resolvable credential
// are rejected with 401.
func Authenticate(validator *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := validator.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				handlers.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin rejects non-admin identities with 403.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.FromContext(r.Context())
			if id == nil || !id.Admin {
				handlers.WriteError(w, r, errdefs.Forbidden("admin key required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStoreKey rejects identities that are not bound to a tenant:
// the file endpoints have no meaning for the admin key.
func RequireStoreKey() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.FromContext(r.Context())
			if id == nil || id.Admin || id.StoreID == "" {
				handlers.WriteError(w, r, errdefs.Forbidden("store key required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
