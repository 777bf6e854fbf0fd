package oauth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/audiencer/audiencer/internal/kv"
	"github.com/audiencer/audiencer/internal/logging"
)

// ServeToken handles the downstream /token endpoint. The authorization code
// presented here is already the access token value; the exchange validates
// the request and echoes the same opaque value back as access_token.
//
// Exchanges are idempotent: the stored token is not consumed, so a retried
// POST with the same code succeeds until the token expires.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("Failed to parse request body"))
		return
	}

	if grantType := r.Form.Get("grant_type"); grantType != "authorization_code" {
		h.writeError(w, ErrUnsupportedGrantType("Only authorization_code grant is supported"))
		return
	}

	code := r.Form.Get("code")
	clientID := r.Form.Get("client_id")
	if code == "" || clientID == "" {
		h.writeError(w, ErrInvalidRequest("code and client_id are required"))
		return
	}

	token, err := h.getToken(r.Context(), code)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			h.recordFlow("token", logging.StatusError)
			h.writeError(w, ErrInvalidGrant("Invalid or expired authorization code"))
			return
		}
		h.logger.Error("Failed to load access token", logging.Err(err))
		h.writeError(w, ErrServerError("Failed to load access token"))
		return
	}

	if token.ClientID != clientID {
		h.recordFlow("token", logging.StatusError)
		h.writeError(w, ErrInvalidGrant("Authorization code was issued to a different client"))
		return
	}

	if err := ValidateCodeChallenge(token.CodeChallenge, token.CodeChallengeMethod, r.Form.Get("code_verifier")); err != nil {
		h.recordFlow("token", logging.StatusError)
		h.writeError(w, ErrInvalidGrant(err.Error()))
		return
	}

	// Confidential clients authenticate with client_secret_post. Public
	// clients registered with auth method none skip this.
	if clientSecret := r.Form.Get("client_secret"); clientSecret != "" {
		client, err := h.getClient(r.Context(), clientID)
		if err != nil || !validateClientSecret(client, clientSecret) {
			h.recordFlow("token", logging.StatusError)
			h.writeError(w, ErrInvalidClient("Client authentication failed"))
			return
		}
	}

	expiresIn := token.ExpiresAt - h.now().Unix()
	if expiresIn <= 0 {
		_ = h.deleteToken(r.Context(), code)
		h.recordFlow("token", logging.StatusError)
		h.writeError(w, ErrInvalidGrant("Invalid or expired authorization code"))
		return
	}

	h.logger.Info("Issued access token",
		logging.Operation("oauth.token"),
		logging.ClientID(clientID),
		logging.UserHash(token.Principal.Email),
	)
	h.recordFlow("token", logging.StatusSuccess)

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	_ = json.NewEncoder(w).Encode(&TokenResponse{
		AccessToken: code,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Scope:       token.Scope,
	})
}
