package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/audiencer/audiencer/internal/kv"
)

// ErrTokenInvalid is returned for tokens that are unknown or expired.
var ErrTokenInvalid = errors.New("oauth: invalid or expired token")

// VerifyToken resolves an opaque bearer token to the principal it was
// issued for. Expired tokens are deleted on sight.
func (h *Handler) VerifyToken(ctx context.Context, tokenValue string) (*Principal, error) {
	if tokenValue == "" {
		return nil, ErrTokenInvalid
	}

	token, err := h.getToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("loading token: %w", err)
	}

	if token.ExpiresAt <= h.now().Unix() {
		_ = h.deleteToken(ctx, tokenValue)
		return nil, ErrTokenInvalid
	}

	principal := token.Principal
	return &principal, nil
}

// Authorized reports whether the principal is permitted to use the server.
// An empty allow list admits everyone who completed upstream authorization.
func (h *Handler) Authorized(principal *Principal) bool {
	if len(h.config.AllowedUsers) == 0 {
		return true
	}
	for _, allowed := range h.config.AllowedUsers {
		if principal.Email == allowed {
			return true
		}
	}
	return false
}
