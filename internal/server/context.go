package server

import (
	"context"
	"errors"
	"sync"

	"github.com/audiencer/audiencer/internal/audience"
	"github.com/audiencer/audiencer/internal/kv"
	"github.com/audiencer/audiencer/internal/oauth"
)

// ServerContext holds the long-lived dependencies of a running audiencer
// server: the audience API client the tools call into, the OAuth bridge
// handler, and the backing token store. It owns a cancellable context
// that is cancelled exactly once on Shutdown.
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	audienceAPI  *audience.Client
	oauthHandler *oauth.Handler
	store        kv.Store
	readOnly     bool
	mu           sync.RWMutex
	shutdown     bool
}

// NewServerContext creates a new server context. The audience client may
// be nil when the server runs without an upstream audience API (tools are
// then not registered); the OAuth handler and store are required.
func NewServerContext(ctx context.Context, audienceAPI *audience.Client, oauthHandler *oauth.Handler, store kv.Store, readOnly bool) (*ServerContext, error) {
	if oauthHandler == nil {
		return nil, errors.New("oauth handler is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		audienceAPI:  audienceAPI,
		oauthHandler: oauthHandler,
		store:        store,
		readOnly:     readOnly,
	}, nil
}

// Context returns the server's lifetime context. It is cancelled when
// Shutdown is called.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// AudienceClient returns the audience API client, or nil when the server
// runs without one.
func (sc *ServerContext) AudienceClient() *audience.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audienceAPI
}

// OAuthHandler returns the OAuth bridge handler.
func (sc *ServerContext) OAuthHandler() *oauth.Handler {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.oauthHandler
}

// Store returns the backing key-value store.
func (sc *ServerContext) Store() kv.Store {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.store
}

// ReadOnly reports whether the server was started in read-only mode.
func (sc *ServerContext) ReadOnly() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.readOnly
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
