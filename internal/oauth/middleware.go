package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/audiencer/audiencer/internal/logging"
)

// contextKey is the type for context keys set by the auth middleware.
type contextKey string

// principalContextKey is the key for the authenticated principal in the
// request context.
const principalContextKey contextKey = "oauth_principal"

// PrincipalFromContext returns the principal attached by RequireAuth, or
// nil when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}

// RequireAuth is middleware that rejects requests without a valid bearer
// token. Challenges carry a resource_metadata pointer so capable clients
// can discover the authorization server on their own.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeChallenge(w, "", "")
			h.writeUnauthorizedError(w, "missing_token", "Missing Authorization header")
			return
		}

		scheme, value, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			h.writeChallenge(w, "invalid_token", "Invalid Authorization header format")
			h.writeUnauthorizedError(w, "invalid_token", "Invalid Authorization header format")
			return
		}

		principal, err := h.VerifyToken(r.Context(), value)
		if err != nil {
			h.logger.Debug("Bearer token rejected", logging.Err(err))
			h.writeChallenge(w, "invalid_token", "The access token is invalid or expired")
			h.writeUnauthorizedError(w, "invalid_token", "The access token is invalid or expired")
			return
		}

		if !h.Authorized(principal) {
			h.logger.Warn("Authenticated user not in allow list",
				logging.UserHash(principal.Email),
			)
			h.setSecurityHeaders(w)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(&ErrorResponse{
				Error:            "access_denied",
				ErrorDescription: "User is not authorized to use this server",
			})
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthFunc is the http.HandlerFunc form of RequireAuth.
func (h *Handler) RequireAuthFunc(next http.HandlerFunc) http.HandlerFunc {
	return h.RequireAuth(next).ServeHTTP
}

// writeChallenge sets the WWW-Authenticate header for a 401 response.
func (h *Handler) writeChallenge(w http.ResponseWriter, errCode, errDesc string) {
	challenge := fmt.Sprintf(
		`Bearer realm=%q, resource_metadata=%q`,
		h.config.Issuer,
		h.config.Issuer+"/.well-known/oauth-protected-resource",
	)
	if errCode != "" {
		challenge += fmt.Sprintf(`, error=%q, error_description=%q`, errCode, errDesc)
	}
	w.Header().Set("WWW-Authenticate", challenge)
}

// writeUnauthorizedError writes a 401 JSON error body.
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, errCode, errDesc string) {
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		Error:            errCode,
		ErrorDescription: errDesc,
	})
}
