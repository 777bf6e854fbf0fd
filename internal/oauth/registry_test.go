package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHandler_ServeRegister(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	resp := registerTestClient(t, handler)

	if resp.ClientID == "" {
		t.Error("registration returned empty client_id")
	}
	if resp.ClientSecret == "" {
		t.Error("registration returned empty client_secret")
	}
	if resp.ClientName != "Test Client" {
		t.Errorf("ClientName = %q, want %q", resp.ClientName, "Test Client")
	}
	if len(resp.RedirectURIs) != 1 || resp.RedirectURIs[0] != "https://client.example.com/callback" {
		t.Errorf("RedirectURIs = %v", resp.RedirectURIs)
	}
	if len(resp.GrantTypes) != 1 || resp.GrantTypes[0] != "authorization_code" {
		t.Errorf("GrantTypes = %v, want [authorization_code]", resp.GrantTypes)
	}

	// The stored registration holds a bcrypt hash, not the secret itself.
	client, err := handler.getClient(t.Context(), resp.ClientID)
	if err != nil {
		t.Fatalf("getClient() error = %v", err)
	}
	if client.ClientSecretHash == resp.ClientSecret {
		t.Error("client secret stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(resp.ClientSecret)); err != nil {
		t.Errorf("stored hash does not match issued secret: %v", err)
	}
}

func TestHandler_ServeRegister_UniqueCredentials(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		resp := registerTestClient(t, handler)
		if seen[resp.ClientID] {
			t.Fatalf("duplicate client_id %q", resp.ClientID)
		}
		seen[resp.ClientID] = true
	}
}

func TestHandler_ServeRegister_Errors(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "method not allowed",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "malformed JSON",
			method:     http.MethodPost,
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "missing redirect_uris",
			method:     http.MethodPost,
			body:       `{"client_name":"No URIs"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeRegister(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantError != "" {
				var errResp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
					t.Fatalf("Failed to decode error response: %v", err)
				}
				if errResp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", errResp.Error, tt.wantError)
				}
			}
		})
	}
}

func TestValidateClientSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-secret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword() error = %v", err)
	}
	client := &ClientRegistration{ClientID: "c", ClientSecretHash: string(hash)}

	if !validateClientSecret(client, "correct-secret") {
		t.Error("validateClientSecret() = false for the correct secret")
	}
	if validateClientSecret(client, "wrong-secret") {
		t.Error("validateClientSecret() = true for a wrong secret")
	}
	if validateClientSecret(client, "") {
		t.Error("validateClientSecret() = true for an empty secret")
	}
}
