package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/audiencer/audiencer/internal/kv"
)

// Handler implements the OAuth bridge endpoints. It acts as an OAuth 2.0
// authorization server toward downstream clients while delegating end-user
// authentication to the configured upstream Provider.
//
// Each request handler is a pure function of (request, store): all
// cross-request state lives in the kv.Store, so concurrent invocations
// share nothing in-process.
type Handler struct {
	config   *Config
	store    kv.Store
	signer   *ApprovalSigner
	provider Provider
	logger   *slog.Logger

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewHandler creates a new bridge handler. Issuer, CookieKey, and
// Provider are required; TTLs default per constants.go.
func NewHandler(config *Config, store kv.Store) (*Handler, error) {
	if config.Issuer == "" {
		return nil, errors.New("issuer is required")
	}

	parsedURL, err := url.Parse(config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	// Allow HTTP only for loopback addresses (development); require
	// HTTPS everywhere else.
	if parsedURL.Scheme != "https" && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("issuer must use HTTPS in production (got %s://)", parsedURL.Scheme)
	}

	if len(config.CookieKey) == 0 {
		return nil, errors.New("cookie signing key is required")
	}
	if config.Provider == nil {
		return nil, errors.New("upstream provider is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	if config.ClientTTL == 0 {
		config.ClientTTL = DefaultClientTTL
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		config:   config,
		store:    store,
		signer:   NewApprovalSigner(config.CookieKey),
		provider: config.Provider,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Signer returns the approval cookie signer (for testing).
func (h *Handler) Signer() *ApprovalSigner {
	return h.signer
}

// ServeAuthorizationServerMetadata serves the OAuth 2.0 Authorization
// Server Metadata (RFC 8414). Downstream clients discover the authorize,
// token, and registration endpoints here.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            h.config.Issuer,
		AuthorizationEndpoint:             h.config.Issuer + "/authorize",
		TokenEndpoint:                     h.config.Issuer + "/token",
		RegistrationEndpoint:              h.config.Issuer + "/register",
		ScopesSupported:                   h.config.SupportedScopes,
		ResponseTypesSupported:            DefaultResponseTypes,
		GrantTypesSupported:               DefaultGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
		CodeChallengeMethodsSupported:     SupportedCodeChallengeMethods,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode authorization server metadata", "error", err)
	}
}

// ServeProtectedResourceMetadata serves the OAuth 2.0 Protected Resource
// Metadata (RFC 9728), pointing clients at this server as both resource
// and authorization server.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Issuer,
		AuthorizationServers:   []string{h.config.Issuer},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(metadata); err != nil {
		h.logger.Error("Failed to encode protected resource metadata", "error", err)
	}
}

// setSecurityHeaders sets security headers on HTTP responses.
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
}

// writeError writes an OAuth error response.
func (h *Handler) writeError(w http.ResponseWriter, oauthErr *OAuthError) {
	h.logger.Debug("OAuth error",
		"code", oauthErr.Code,
		"description", oauthErr.Description,
		"status", oauthErr.Status)
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(oauthErr.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}

// recordFlow reports a flow event to the configured metrics recorder.
func (h *Handler) recordFlow(stage, result string) {
	if h.config.Metrics != nil {
		h.config.Metrics.RecordOAuthFlow(stage, result)
	}
}

// isLoopback reports whether a hostname is a loopback address.
func isLoopback(hostname string) bool {
	hostname = strings.Trim(hostname, "[]")
	switch hostname {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasPrefix(hostname, "127.")
}

// generateSecureToken generates a cryptographically secure random token.
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
