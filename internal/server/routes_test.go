package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"

	"github.com/audiencer/audiencer/internal/kv"
	"github.com/audiencer/audiencer/internal/oauth"
)

// stubUpstream satisfies oauth.Provider without any network calls.
type stubUpstream struct{}

func (stubUpstream) Name() string { return "stub" }

func (stubUpstream) AuthCodeURL(state string) string {
	return "https://upstream.example.com/authorize?state=" + state
}

func (stubUpstream) Exchange(_ context.Context, _ string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "upstream-access"}, nil
}

func (stubUpstream) FetchProfile(_ context.Context, _ *oauth2.Token) (*oauth.Profile, error) {
	return &oauth.Profile{ID: "user-1", Name: "Test User", Email: "user@example.com"}, nil
}

func newTestOAuthHandler(t *testing.T) (*oauth.Handler, kv.Store) {
	t.Helper()

	store := kv.NewMemoryStore()
	handler, err := oauth.NewHandler(&oauth.Config{
		Issuer:    "http://127.0.0.1:8080",
		CookieKey: []byte("test-cookie-signing-key"),
		Provider:  stubUpstream{},
	}, store)
	if err != nil {
		t.Fatalf("oauth.NewHandler() error = %v", err)
	}
	return handler, store
}

func newTestHTTPServer(t *testing.T) *HTTPServer {
	t.Helper()

	handler, store := newTestOAuthHandler(t)

	sc, err := NewServerContext(context.Background(), nil, handler, store, false)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })

	srv, err := NewHTTPServer(HTTPServerConfig{
		Addr:         ":8080",
		OAuthHandler: handler,
		MCPServer:    mcpserver.NewMCPServer("test", "0.0.1", mcpserver.WithToolCapabilities(true)),
		Health:       NewHealthChecker(sc),
	})
	if err != nil {
		t.Fatalf("NewHTTPServer() error = %v", err)
	}
	return srv
}

func TestNewHTTPServer_Validation(t *testing.T) {
	handler, _ := newTestOAuthHandler(t)
	mcp := mcpserver.NewMCPServer("test", "0.0.1")

	tests := []struct {
		name        string
		config      HTTPServerConfig
		errContains string
	}{
		{
			name:        "missing oauth handler",
			config:      HTTPServerConfig{Addr: ":8080", MCPServer: mcp},
			errContains: "oauth handler is required",
		},
		{
			name:        "missing mcp server",
			config:      HTTPServerConfig{Addr: ":8080", OAuthHandler: handler},
			errContains: "mcp server is required",
		},
		{
			name:        "missing addr",
			config:      HTTPServerConfig{OAuthHandler: handler, MCPServer: mcp},
			errContains: "listen address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPServer(tt.config)
			if err == nil {
				t.Fatal("NewHTTPServer() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("NewHTTPServer() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestHTTPServer_DiscoveryRoutes(t *testing.T) {
	srv := newTestHTTPServer(t)
	handler := srv.Handler()

	for _, path := range []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/oauth-protected-resource",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s Content-Type = %q, want application/json", path, ct)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("GET %s Access-Control-Allow-Origin = %q, want *", path, got)
		}
	}
}

func TestHTTPServer_MCPRequiresBearer(t *testing.T) {
	srv := newTestHTTPServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("POST /mcp without token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	challenge := rec.Header().Get("WWW-Authenticate")
	if !strings.Contains(challenge, "Bearer") || !strings.Contains(challenge, "resource_metadata=") {
		t.Errorf("WWW-Authenticate = %q, want Bearer challenge with resource_metadata", challenge)
	}
}

func TestHTTPServer_HealthRoutes(t *testing.T) {
	srv := newTestHTTPServer(t)
	handler := srv.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestHTTPServer_Preflight(t *testing.T) {
	srv := newTestHTTPServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/token", nil)
	req.Header.Set("Origin", "https://client.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS /token status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Access-Control-Allow-Headers = %q, want Authorization allowed", got)
	}
}

func TestCORSMiddleware_DoesNotOverrideHandlerHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "https://trusted.example.com")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	corsMiddleware(inner).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://trusted.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, handler value should win", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Access-Control-Allow-Methods missing, should be injected alongside handler headers")
	}
}

func TestCORSMiddleware_InjectsOnImplicitWrite(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Write without an explicit WriteHeader call.
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	corsMiddleware(inner).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestResponseRecorder_Status(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	if rec.Status() != http.StatusOK {
		t.Errorf("Status() before write = %d, want %d", rec.Status(), http.StatusOK)
	}

	rec = &responseRecorder{ResponseWriter: httptest.NewRecorder()}
	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusOK) // second call must not overwrite
	if rec.Status() != http.StatusTeapot {
		t.Errorf("Status() = %d, want %d", rec.Status(), http.StatusTeapot)
	}
}
