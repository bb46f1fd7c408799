// Package middleware provides HTTP middleware for the backmon API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/backmon-io/backmon/internal/catalog/api/auth"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// claimsContextKey is the context key under which validated JWT claims
// are stored for downstream handlers.
const claimsContextKey contextKey = "jwt_claims"

// GetClaimsFromContext returns the JWT claims stored in the request
// context by JWTAuth, or nil if the request was not authenticated.
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// extractBearerToken extracts the token from an "Authorization: Bearer"
// header. The scheme comparison is case-insensitive.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	return token, true
}

// writeProblem writes an RFC 7807 problem response. The handlers
// package has richer helpers; middleware keeps its own copy because
// handlers imports this package for claims access.
func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "about:blank",
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

// JWTAuth returns middleware that validates the Bearer access token and
// stores the claims in the request context.
//
// Requests without a valid access token are rejected with 401.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header")
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns middleware that rejects requests whose claims do
// not carry the admin role. Must be applied after JWTAuth.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}

			if !claims.IsAdmin() {
				writeProblem(w, http.StatusForbidden, "Forbidden", "Admin role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePasswordChange returns middleware that blocks users flagged
// with MustChangePassword from all endpoints except the listed exempt
// paths. Must be applied after JWTAuth.
func RequirePasswordChange(exemptPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			}

			if claims.MustChangePassword {
				for _, path := range exemptPaths {
					if r.URL.Path == path {
						next.ServeHTTP(w, r)
						return
					}
				}
				writeProblem(w, http.StatusForbidden, "Forbidden", "Password change required before accessing this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
