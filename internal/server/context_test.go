package server

import (
	"context"
	"strings"
	"testing"

	"github.com/audiencer/audiencer/internal/kv"
)

func TestNewServerContext_Validation(t *testing.T) {
	handler, store := newTestOAuthHandler(t)

	t.Run("missing oauth handler", func(t *testing.T) {
		_, err := NewServerContext(context.Background(), nil, nil, store, false)
		if err == nil || !strings.Contains(err.Error(), "oauth handler is required") {
			t.Errorf("NewServerContext() error = %v, want oauth handler error", err)
		}
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := NewServerContext(context.Background(), nil, handler, nil, false)
		if err == nil || !strings.Contains(err.Error(), "store is required") {
			t.Errorf("NewServerContext() error = %v, want store error", err)
		}
	})

	t.Run("nil audience client is allowed", func(t *testing.T) {
		sc, err := NewServerContext(context.Background(), nil, handler, store, false)
		if err != nil {
			t.Fatalf("NewServerContext() error = %v", err)
		}
		defer func() { _ = sc.Shutdown() }()

		if sc.AudienceClient() != nil {
			t.Error("AudienceClient() should be nil")
		}
	})
}

func TestServerContext_Accessors(t *testing.T) {
	handler, store := newTestOAuthHandler(t)

	sc, err := NewServerContext(context.Background(), nil, handler, store, true)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	defer func() { _ = sc.Shutdown() }()

	if sc.OAuthHandler() != handler {
		t.Error("OAuthHandler() returned a different handler")
	}
	if sc.Store() == nil {
		t.Error("Store() returned nil")
	}
	if !sc.ReadOnly() {
		t.Error("ReadOnly() = false, want true")
	}
	if sc.IsShutdown() {
		t.Error("IsShutdown() = true before Shutdown()")
	}
}

func TestServerContext_Shutdown(t *testing.T) {
	handler, _ := newTestOAuthHandler(t)

	sc, err := NewServerContext(context.Background(), nil, handler, kv.NewMemoryStore(), false)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}

	if err := sc.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !sc.IsShutdown() {
		t.Error("IsShutdown() = false after Shutdown()")
	}

	select {
	case <-sc.Context().Done():
	default:
		t.Error("Context() not cancelled after Shutdown()")
	}

	// Second shutdown is a no-op.
	if err := sc.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
