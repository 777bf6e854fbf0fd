package oauth

import (
	"errors"
	"testing"
	"time"
)

func TestHandler_VerifyToken(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)
	code := completeAuthorization(t, handler, client.ClientID)

	principal, err := handler.VerifyToken(t.Context(), code)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if principal.ID != "user-1" {
		t.Errorf("principal ID = %q, want user-1", principal.ID)
	}
	if principal.Email != "user@example.com" {
		t.Errorf("principal Email = %q", principal.Email)
	}
	if principal.UpstreamAccessToken == "" {
		t.Error("principal is missing the upstream access token")
	}
}

func TestHandler_VerifyToken_Invalid(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"unknown token", "never-issued"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := handler.VerifyToken(t.Context(), tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("VerifyToken(%q) error = %v, want ErrTokenInvalid", tt.token, err)
			}
		})
	}
}

func TestHandler_VerifyToken_Expired(t *testing.T) {
	handler, _, store := newTestHandler(t)
	client := registerTestClient(t, handler)
	code := completeAuthorization(t, handler, client.ClientID)

	handler.now = func() time.Time { return time.Now().Add(DefaultTokenTTL + time.Minute) }

	if _, err := handler.VerifyToken(t.Context(), code); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("VerifyToken() error = %v, want ErrTokenInvalid", err)
	}

	// Expired tokens are purged, not just rejected.
	if _, err := store.Get(t.Context(), TokenKeyPrefix+code); err == nil {
		t.Error("expired token still present in the store")
	}
}

func TestHandler_Authorized(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []string
		email        string
		want         bool
	}{
		{"empty allow list admits anyone", nil, "anyone@example.com", true},
		{"listed user admitted", []string{"a@example.com", "b@example.com"}, "b@example.com", true},
		{"unlisted user rejected", []string{"a@example.com"}, "b@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, _ := newTestHandler(t)
			handler.config.AllowedUsers = tt.allowedUsers

			got := handler.Authorized(&Principal{Email: tt.email})
			if got != tt.want {
				t.Errorf("Authorized() = %v, want %v", got, tt.want)
			}
		})
	}
}
