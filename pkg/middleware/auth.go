package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Headers injected by the upstream identity proxy. The service trusts these
// blindly; authentication itself happens before traffic reaches us.
const (
	HeaderUserIdentity = "X-User-Identity"
	HeaderUserRole     = "X-User-Role"
	HeaderSessionID    = "X-Session-Id"
)

// Principal is the authenticated caller as resolved by the identity layer.
type Principal struct {
	Identity  string `json:"identity"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}

// Identity materializes a Principal from the identity-proxy headers and stores
// it in the request context. Requests without an identity header are rejected
// with 401.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := r.Header.Get(HeaderUserIdentity)
			if identity == "" {
				writeAuthError(w, "missing identity")
				return
			}

			p := Principal{
				Identity:  identity,
				Role:      r.Header.Get(HeaderUserRole),
				SessionID: r.Header.Get(HeaderSessionID),
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole checks that the authenticated principal has one of the required roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, "missing identity")
				return
			}
			if _, ok := roleSet[p.Role]; !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "FORBIDDEN",
					"message": "insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext extracts the caller principal from the request context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserIDFromContext extracts the caller identity from the request context.
// Returns "" when the request is unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Identity
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": message,
	})
}
