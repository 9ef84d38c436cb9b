package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/jredh-dev/surpluserve/internal/token"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// identityContextKey stores the decoded caller identity in request context.
const identityContextKey contextKey = "identity"

// RequireAuth validates the bearer credential and stores the decoded
// identity in the request context. Handlers downstream never see the raw
// token, only the identity.
func RequireAuth(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				jsonError(w, "authorization required", http.StatusUnauthorized)
				return
			}

			var id *models.Identity
			if claims, err := tokens.ValidateToken(raw); err == nil {
				id = &models.Identity{ID: claims.UserID, Role: claims.Role, Name: claims.Name}
			} else if claims, fbErr := tokens.ValidateFirebaseToken(r.Context(), raw); fbErr == nil {
				id = &models.Identity{ID: claims.UserID, Role: claims.Role, Name: claims.Name}
			}
			if id == nil || id.ID == "" {
				jsonError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole requires the authenticated caller to hold the given role.
// MUST be used after RequireAuth.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || id.Role != role {
				jsonError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext extracts the authenticated caller from request
// context.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*models.Identity)
	return id, ok
}

// bearerToken pulls the credential from the Authorization header, with the
// legacy X-Auth-Token header as a fallback.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	return r.Header.Get("X-Auth-Token")
}
