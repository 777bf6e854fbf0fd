package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/audiencer/audiencer/internal/instrumentation"
	"github.com/audiencer/audiencer/internal/oauth"
)

// CORS headers injected on every response that does not already carry
// its own. MCP clients run in browsers and need the Mcp-* headers
// allowed for the streamable HTTP transport.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, Mcp-Session-Id, Mcp-Protocol-Version"
)

// HTTPServerConfig holds configuration for the main HTTP listener.
type HTTPServerConfig struct {
	// Addr is the address to bind to (e.g., ":8080").
	Addr string

	// OAuthHandler serves the bridge endpoints and guards /mcp.
	OAuthHandler *oauth.Handler

	// MCPServer is the MCP server exposed on /mcp.
	MCPServer *mcpserver.MCPServer

	// Health registers /healthz and /readyz when set.
	Health *HealthChecker

	// Metrics records per-request counters and latencies (optional).
	Metrics *instrumentation.Metrics

	// DisableStreaming forces plain JSON responses on /mcp for clients
	// that cannot consume SSE streams.
	DisableStreaming bool

	// Logger for structured logging (optional, uses default if not provided).
	Logger *slog.Logger
}

// HTTPServer is the main listener: OAuth bridge endpoints, the protected
// /mcp endpoint, and health checks, all behind CORS and request metrics.
type HTTPServer struct {
	config     HTTPServerConfig
	httpServer *http.Server
	logger     *slog.Logger
}

// NewHTTPServer creates the main HTTP server. OAuthHandler and MCPServer
// are required.
func NewHTTPServer(config HTTPServerConfig) (*HTTPServer, error) {
	if config.OAuthHandler == nil {
		return nil, errors.New("oauth handler is required")
	}
	if config.MCPServer == nil {
		return nil, errors.New("mcp server is required")
	}
	if config.Addr == "" {
		return nil, errors.New("listen address is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPServer{
		config: config,
		logger: logger,
	}, nil
}

// route binds a path to its handler. Handlers do their own method
// checking so that unsupported methods get OAuth-shaped 405 responses
// instead of the mux default.
type route struct {
	path    string
	handler http.Handler
}

// Handler builds the complete request handler: the route table wrapped
// in CORS injection and request metrics.
func (s *HTTPServer) Handler() http.Handler {
	h := s.config.OAuthHandler

	streamableOpts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath("/mcp"),
	}
	if s.config.DisableStreaming {
		streamableOpts = append(streamableOpts, mcpserver.WithDisableStreaming(true))
	}
	mcpHandler := mcpserver.NewStreamableHTTPServer(s.config.MCPServer, streamableOpts...)

	routes := []route{
		{"/.well-known/oauth-authorization-server", http.HandlerFunc(h.ServeAuthorizationServerMetadata)},
		{"/.well-known/oauth-protected-resource", http.HandlerFunc(h.ServeProtectedResourceMetadata)},
		{"/register", http.HandlerFunc(h.ServeRegister)},
		{"/authorize", http.HandlerFunc(h.ServeAuthorize)},
		{"/callback", http.HandlerFunc(h.ServeCallback)},
		{"/token", http.HandlerFunc(h.ServeToken)},
		{"/mcp", h.RequireAuth(mcpHandler)},
	}

	mux := http.NewServeMux()
	for _, r := range routes {
		mux.Handle(r.path, r.handler)
	}

	if s.config.Health != nil {
		s.config.Health.RegisterHealthEndpoints(mux)
	}

	return corsMiddleware(s.metricsMiddleware(mux))
}

// Start starts the HTTP server in a blocking manner.
// Call this in a goroutine if you need non-blocking operation.
func (s *HTTPServer) Start() error {
	// No WriteTimeout: /mcp streams SSE responses that stay open far
	// longer than any fixed write deadline.
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting http server", "addr", s.config.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down http server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.config.Addr
}

// metricsMiddleware records method, path, status, and duration for every
// request. A nil Metrics disables recording.
func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	if s.config.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.config.Metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.Status(), time.Since(start))
	})
}

// corsMiddleware injects permissive CORS headers on every response that
// does not already carry them, and answers OPTIONS preflight requests
// directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			injectCORSHeaders(w.Header())
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(&corsResponseWriter{ResponseWriter: w}, r)
	})
}

func injectCORSHeaders(h http.Header) {
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	}
	if h.Get("Access-Control-Allow-Methods") == "" {
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	}
	if h.Get("Access-Control-Allow-Headers") == "" {
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	}
}

// corsResponseWriter injects CORS headers just before the header block is
// flushed, so handlers that set their own CORS headers win.
type corsResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *corsResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		injectCORSHeaders(w.Header())
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *corsResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush keeps SSE streaming on /mcp working through the wrapper.
func (w *corsResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// responseRecorder captures the response status for request metrics.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (w *responseRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the recorded status, defaulting to 200 when the handler
// never wrote one explicitly.
func (w *responseRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *responseRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
