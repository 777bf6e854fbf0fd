// Package instrumentation provides OpenTelemetry instrumentation for the
// audiencer MCP server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth flow stages, audience
//     API calls, and MCP tool invocations
//   - Prometheus metrics export on a dedicated listener
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// OAuth Bridge Metrics:
//   - oauth_flow_total: Counter of flow stage outcomes by stage
//     (register, consent, authorize, callback, token) and result
//
// Audience API Metrics:
//   - audience_api_operations_total: Counter of audience API operations by
//     operation and status
//   - audience_api_operation_duration_seconds: Histogram of operation durations
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for metrics
//   - OTEL_SERVICE_NAME: Service name (default: audiencer)
package instrumentation
