// Package kv provides the key-value persistence layer used by the OAuth
// bridge for sessions, issued tokens, and client registrations.
//
// The store is deliberately minimal: get, put-with-TTL, and delete. There
// are no transactions and no cross-key atomicity; every caller must be
// correct under that model. Two implementations are provided: an in-memory
// store that enforces expiry lazily on read, and a Redis-backed store that
// relies on the server's native TTL handling.
package kv
