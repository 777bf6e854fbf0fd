package oauth

import "time"

// Store key prefixes. The logical key layout is store-agnostic:
// "session:<session_id>", "mcp_token:<token>", "client:<client_id>".
const (
	SessionKeyPrefix = "session:"
	TokenKeyPrefix   = "mcp_token:"
	ClientKeyPrefix  = "client:"
)

// Default TTLs for persisted state.
const (
	// DefaultSessionTTL bounds how long a pending authorization may sit
	// between /authorize and the upstream callback.
	DefaultSessionTTL = 1 * time.Hour

	// DefaultTokenTTL is the lifetime of an issued bearer token.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// DefaultClientTTL is the soft lifetime of a client registration.
	// Registrations are long-lived; inspector-style tools simply
	// re-register when theirs lapses.
	DefaultClientTTL = 30 * 24 * time.Hour
)

// Token generation lengths, in random bytes before base64url encoding.
const (
	ClientIDLength     = 16
	ClientSecretLength = 32
	SessionIDLength    = 32
	AccessTokenLength  = 32
	StateTokenLength   = 16
)

// Approval cookie settings.
const (
	// ApprovalCookieName holds the HMAC-signed list of client IDs the
	// browser has already approved.
	ApprovalCookieName = "audiencer_approved_clients"

	// ApprovalCookieTTL is the client-side cookie lifetime. Approvals are
	// never persisted server-side.
	ApprovalCookieTTL = 365 * 24 * time.Hour
)

// OAuth grant types and response types.
var (
	// DefaultGrantTypes are the grant types supported by the bridge.
	DefaultGrantTypes = []string{"authorization_code"}

	// DefaultResponseTypes are the response types supported by the bridge.
	DefaultResponseTypes = []string{"code"}

	// SupportedCodeChallengeMethods are the PKCE methods we accept.
	SupportedCodeChallengeMethods = []string{"S256", "plain"}

	// SupportedTokenAuthMethods are the supported token endpoint auth methods.
	SupportedTokenAuthMethods = []string{"client_secret_post", "none"}
)

// DefaultTokenEndpointAuthMethod is reported in registration documents.
const DefaultTokenEndpointAuthMethod = "client_secret_post"
