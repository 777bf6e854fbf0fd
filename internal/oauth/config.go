package oauth

import (
	"log/slog"
	"time"
)

// Config holds the OAuth bridge configuration. Every handler is
// constructed from an explicit Config plus a kv.Store; there is no
// ambient/global state.
type Config struct {
	// Issuer is the public base URL of this server, e.g.
	// "https://mcp.example.com". It is used as the OAuth issuer, the
	// RFC 9728 resource identifier, and the base for endpoint URLs in
	// discovery documents.
	Issuer string

	// CookieKey is the HMAC-SHA256 key signing the consent approval
	// cookie. It must be configuration-provided and stable across
	// restarts, or browsers lose their remembered approvals.
	CookieKey []byte

	// Provider is the upstream identity provider the bridge delegates
	// end-user authentication to.
	Provider Provider

	// AllowedUsers is the set of permitted principal emails. When empty,
	// any authenticated upstream identity is accepted.
	AllowedUsers []string

	// SupportedScopes advertised in discovery documents.
	SupportedScopes []string

	// SessionTTL, TokenTTL, and ClientTTL override the default lifetimes
	// of pending sessions, issued tokens, and client registrations.
	SessionTTL time.Duration
	TokenTTL   time.Duration
	ClientTTL  time.Duration

	// Metrics receives flow events (optional).
	Metrics FlowRecorder

	// Logger for structured logging (optional, uses default if not provided).
	Logger *slog.Logger
}

// FlowRecorder receives OAuth flow events for instrumentation. Implemented
// by instrumentation.Metrics; a nil recorder disables recording.
type FlowRecorder interface {
	RecordOAuthFlow(stage, result string)
}
