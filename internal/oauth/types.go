package oauth

// Principal is the resolved identity behind an issued token. It is passed
// opaquely to downstream authorization checks such as allow-list
// membership.
type Principal struct {
	// ID is the upstream provider's stable user identifier.
	ID string `json:"id"`

	// DisplayName is the user's human-readable name.
	DisplayName string `json:"display_name"`

	// Email is the user's email address.
	Email string `json:"email"`

	// UpstreamAccessToken is the credential obtained from the upstream
	// provider during the callback exchange.
	UpstreamAccessToken string `json:"upstream_access_token"`
}

// AuthorizationSession correlates a downstream /authorize request with its
// eventual upstream callback. The session ID doubles as the upstream state
// parameter, and a session is consumed exactly once.
type AuthorizationSession struct {
	// ID is the opaque session identifier, sent upstream as state.
	ID string `json:"session_id"`

	// ClientID is the downstream client that initiated the flow.
	ClientID string `json:"client_id"`

	// RedirectURI is the downstream redirect target captured at /authorize.
	RedirectURI string `json:"redirect_uri"`

	// State is the downstream client's own state value, echoed back on the
	// final redirect.
	State string `json:"state"`

	// Scope is the requested scope string, if any.
	Scope string `json:"scope,omitempty"`

	// CodeChallenge and CodeChallengeMethod carry the downstream PKCE
	// challenge, validated at the token endpoint.
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// CreatedAt is the unix timestamp the session was minted.
	CreatedAt int64 `json:"created_at"`
}

// IssuedToken is a bearer token minted after a successful upstream
// exchange. It is keyed in the store by its opaque value, which is also
// what the token endpoint hands back as access_token.
type IssuedToken struct {
	// Principal is the authenticated identity this token resolves to.
	Principal Principal `json:"principal"`

	// UpstreamRefreshToken is stored opaquely when the provider returned
	// one; it is never rotated or exposed downstream.
	UpstreamRefreshToken string `json:"upstream_refresh_token,omitempty"`

	// ClientID is the downstream client the token was minted for.
	ClientID string `json:"client_id"`

	// Scope is the scope string carried over from the session.
	Scope string `json:"scope,omitempty"`

	// CodeChallenge and CodeChallengeMethod carry the PKCE challenge from
	// the originating session, if the client supplied one.
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`

	// CreatedAt and ExpiresAt are unix timestamps. Expiry is enforced on
	// read even when the backing store has native TTL support.
	CreatedAt int64 `json:"created_at"`
	ExpiresAt int64 `json:"expires_at"`
}

// ClientRegistration is a dynamically registered downstream client.
// Registrations are immutable once created and keyed by client ID.
type ClientRegistration struct {
	ClientID string `json:"client_id"`

	// ClientSecretHash is the bcrypt hash of the secret; the plain secret
	// is returned exactly once in the registration response.
	ClientSecretHash string `json:"client_secret_hash"`

	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientName              string   `json:"client_name,omitempty"`
	IssuedAt                int64    `json:"issued_at"`
}

// ClientRegistrationRequest is the JSON body accepted at /register
// (RFC 7591 subset).
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the registration document returned with 201.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// TokenResponse is the /token success payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// ErrorResponse represents an OAuth error response body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 resource metadata document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}
