// Package server provides the HTTP surface of the audiencer MCP server:
// the OAuth bridge endpoints, the protected /mcp endpoint, health checks,
// and the dedicated Prometheus metrics listener.
//
// # Key Components
//
// ServerContext holds the long-lived dependencies of a running server
// (audience API client, OAuth handler, token store) behind a cancellable
// context, and coordinates shutdown.
//
// HTTPServer is the main listener. It routes:
//   - Authorization Server Metadata (RFC 8414)
//   - Protected Resource Metadata (RFC 9728)
//   - Dynamic Client Registration (RFC 7591)
//   - /authorize, /callback, /token (authorization code flow)
//   - /mcp (streamable HTTP MCP transport behind bearer authentication)
//   - /healthz, /readyz
//
// All responses carry permissive CORS headers unless a handler already
// set its own.
//
// MetricsServer serves Prometheus metrics on a separate port so that
// operational metrics are never exposed on the public listener.
package server
