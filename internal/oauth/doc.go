// Package oauth implements the embedded OAuth 2.0 authorization bridge.
//
// The bridge plays both sides of the authorization code grant: toward the
// upstream identity provider (Google or GitHub) it is an OAuth client, and
// toward downstream tool-calling clients (inspector UIs, AI assistants,
// proxies) it is an OAuth authorization server. The two flows are
// correlated through an opaque AuthorizationSession whose ID doubles as
// the upstream state parameter.
//
// All cross-request state lives in a kv.Store with per-key TTLs: pending
// authorization sessions, issued bearer tokens, and registered client
// metadata. Consent decisions are remembered client-side in an
// HMAC-signed cookie, so no database is required.
package oauth
