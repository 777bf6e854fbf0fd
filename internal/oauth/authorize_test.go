package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func authorizeQuery(clientID string) url.Values {
	return url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {"https://client.example.com/callback"},
		"response_type": {"code"},
		"state":         {"client-state"},
		"scope":         {"audience"},
	}
}

func TestHandler_ServeAuthorize_ConsentPage(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/authorize?"+authorizeQuery(client.ClientID).Encode(), nil)
	w := httptest.NewRecorder()

	handler.ServeAuthorize(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Test Client") {
		t.Error("consent page does not show the client name")
	}
	if !strings.Contains(body, `name="action" value="approve"`) {
		t.Error("consent page is missing the approve action")
	}
	if !strings.Contains(body, client.ClientID) {
		t.Error("consent page does not carry the client_id forward")
	}
}

func TestHandler_ServeAuthorize_Approve(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)

	form := authorizeQuery(client.ClientID)
	form.Set("action", "approve")
	req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.ServeAuthorize(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusFound, w.Body.String())
	}

	// Approval is remembered in the signed cookie.
	var approvalCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == ApprovalCookieName {
			approvalCookie = c
		}
	}
	if approvalCookie == nil {
		t.Fatal("approve did not set the approval cookie")
	}
	if !approvalCookie.HttpOnly {
		t.Error("approval cookie is not HttpOnly")
	}
	if !handler.Signer().Approved(approvalCookie.Value, client.ClientID) {
		t.Error("approval cookie does not list the approved client")
	}

	// The redirect goes upstream with a fresh session ID as state.
	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location header: %v", err)
	}
	if location.Host != "upstream.example.com" {
		t.Errorf("redirect host = %q, want upstream.example.com", location.Host)
	}
	sessionID := location.Query().Get("state")
	if sessionID == "" {
		t.Fatal("upstream redirect has no state parameter")
	}
	if sessionID == "client-state" {
		t.Error("upstream state must not be the client's state")
	}

	session, err := handler.getSession(t.Context(), sessionID)
	if err != nil {
		t.Fatalf("getSession() error = %v", err)
	}
	if session.ClientID != client.ClientID {
		t.Errorf("session ClientID = %q, want %q", session.ClientID, client.ClientID)
	}
	if session.State != "client-state" {
		t.Errorf("session State = %q, want client-state", session.State)
	}
	if session.RedirectURI != "https://client.example.com/callback" {
		t.Errorf("session RedirectURI = %q", session.RedirectURI)
	}
}

func TestHandler_ServeAuthorize_PreApprovedSkipsConsent(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)

	cookieValue, err := handler.Signer().Approve("", client.ClientID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/authorize?"+authorizeQuery(client.ClientID).Encode(), nil)
	req.AddCookie(&http.Cookie{Name: ApprovalCookieName, Value: cookieValue})
	w := httptest.NewRecorder()

	handler.ServeAuthorize(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d (pre-approved client should skip consent)", w.Code, http.StatusFound)
	}
	if !strings.HasPrefix(w.Header().Get("Location"), "https://upstream.example.com/authorize") {
		t.Errorf("Location = %q, want upstream authorize URL", w.Header().Get("Location"))
	}
}

func TestHandler_ServeAuthorize_TamperedCookieShowsConsent(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/authorize?"+authorizeQuery(client.ClientID).Encode(), nil)
	req.AddCookie(&http.Cookie{Name: ApprovalCookieName, Value: "forged-cookie"})
	w := httptest.NewRecorder()

	handler.ServeAuthorize(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (forged cookie must fall back to consent)", w.Code, http.StatusOK)
	}
}

func TestHandler_ServeAuthorize_GeneratedState(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)

	form := authorizeQuery(client.ClientID)
	form.Del("state")
	form.Set("action", "approve")
	req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.ServeAuthorize(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}

	location, _ := url.Parse(w.Header().Get("Location"))
	session, err := handler.getSession(t.Context(), location.Query().Get("state"))
	if err != nil {
		t.Fatalf("getSession() error = %v", err)
	}
	if session.State == "" {
		t.Error("missing client state was not replaced with a generated one")
	}
}

func TestHandler_ServeAuthorize_Errors(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	client := registerTestClient(t, handler)

	tests := []struct {
		name       string
		mutate     func(url.Values)
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing client_id",
			mutate:     func(v url.Values) { v.Del("client_id") },
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "missing redirect_uri",
			mutate:     func(v url.Values) { v.Del("redirect_uri") },
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "wrong response_type",
			mutate:     func(v url.Values) { v.Set("response_type", "token") },
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "unknown client",
			mutate:     func(v url.Values) { v.Set("client_id", "no-such-client") },
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := authorizeQuery(client.ClientID)
			tt.mutate(query)
			req := httptest.NewRequest(http.MethodGet, "/authorize?"+query.Encode(), nil)
			w := httptest.NewRecorder()

			handler.ServeAuthorize(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if errResp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", errResp.Error, tt.wantError)
			}
		})
	}
}

func TestHandler_ServeAuthorize_MethodNotAllowed(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/authorize", nil)
	w := httptest.NewRecorder()

	handler.ServeAuthorize(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
