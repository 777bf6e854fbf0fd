package oauth

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/audiencer/audiencer/internal/kv"
	"github.com/audiencer/audiencer/internal/logging"
)

// consentTemplate renders the approval page shown before a browser's
// first authorization for a given client.
var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Authorize {{.ClientName}}</title>
  <style>
    body { font-family: -apple-system, sans-serif; max-width: 32em; margin: 4em auto; padding: 0 1em; color: #1a1a1a; }
    .card { border: 1px solid #ddd; border-radius: 8px; padding: 2em; }
    button { background: #1a73e8; color: #fff; border: none; border-radius: 4px; padding: 0.6em 1.6em; font-size: 1em; cursor: pointer; }
    .uri { color: #666; font-size: 0.85em; word-break: break-all; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Authorization request</h1>
    <p><strong>{{.ClientName}}</strong> wants to access your audience data through this server.</p>
    <p class="uri">It will be redirected to: {{.RedirectURI}}</p>
    <p>You will be sent to {{.ProviderName}} to sign in.</p>
    <form method="POST" action="/authorize">
      <input type="hidden" name="client_id" value="{{.ClientID}}">
      <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
      <input type="hidden" name="response_type" value="code">
      <input type="hidden" name="state" value="{{.State}}">
      <input type="hidden" name="scope" value="{{.Scope}}">
      <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
      <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
      <input type="hidden" name="action" value="approve">
      <button type="submit">Approve</button>
    </form>
  </div>
</body>
</html>
`))

type consentPageData struct {
	ClientName          string
	ClientID            string
	RedirectURI         string
	ProviderName        string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

type authorizeParams struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	Approve             bool
}

// ServeAuthorize handles the downstream /authorize leg. GET and POST are
// both accepted; the consent form posts back here with action=approve.
//
// A browser whose signed approval cookie already lists the client skips
// the consent screen. "Proceeding" means minting an AuthorizationSession
// whose ID is sent upstream as the state parameter, then issuing a 302 to
// the provider's authorization URL.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrInvalidRequest("Failed to parse request parameters"))
		return
	}

	params := authorizeParams{
		ClientID:            r.Form.Get("client_id"),
		RedirectURI:         r.Form.Get("redirect_uri"),
		ResponseType:        r.Form.Get("response_type"),
		State:               r.Form.Get("state"),
		Scope:               r.Form.Get("scope"),
		CodeChallenge:       r.Form.Get("code_challenge"),
		CodeChallengeMethod: r.Form.Get("code_challenge_method"),
		Approve:             r.Method == http.MethodPost && r.Form.Get("action") == "approve",
	}

	if params.ClientID == "" {
		h.writeError(w, ErrInvalidRequest("client_id is required"))
		return
	}
	if params.RedirectURI == "" {
		h.writeError(w, ErrInvalidRequest("redirect_uri is required"))
		return
	}
	if params.ResponseType != "code" {
		h.writeError(w, ErrInvalidRequest("response_type must be code"))
		return
	}
	if params.CodeChallenge != "" && params.CodeChallengeMethod == "" {
		params.CodeChallengeMethod = "plain"
	}

	client, err := h.getClient(r.Context(), params.ClientID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			h.writeError(w, ErrInvalidClient("Unknown client_id"))
			return
		}
		h.logger.Error("Failed to load client registration", logging.Err(err))
		h.writeError(w, ErrServerError("Failed to load client registration"))
		return
	}

	// Some clients omit state entirely; generate one so the downstream
	// redirect always carries a correlation value. Not spec-pure OAuth2,
	// but required for compatibility.
	if params.State == "" {
		state, err := generateSecureToken(StateTokenLength)
		if err != nil {
			h.writeError(w, ErrServerError("Failed to generate state"))
			return
		}
		params.State = state
	}

	cookieValue := h.approvalCookieValue(r)

	switch {
	case params.Approve:
		// Consent granted: remember it in the re-signed cookie, then
		// continue upstream.
		newCookie, err := h.signer.Approve(cookieValue, params.ClientID)
		if err != nil {
			h.writeError(w, ErrServerError("Failed to sign approval cookie"))
			return
		}
		h.setApprovalCookie(w, newCookie)
		h.recordFlow("consent", logging.StatusSuccess)
	case h.signer.Approved(cookieValue, params.ClientID):
		// Already approved by this browser; skip the consent screen.
	default:
		h.renderConsentPage(w, client, params)
		return
	}

	h.redirectUpstream(w, r, params)
}

// redirectUpstream persists the authorization session and sends the
// browser to the upstream provider.
func (h *Handler) redirectUpstream(w http.ResponseWriter, r *http.Request, params authorizeParams) {
	sessionID, err := generateSecureToken(SessionIDLength)
	if err != nil {
		h.recordFlow("authorize", logging.StatusError)
		h.writeError(w, ErrServerError("Failed to generate session ID"))
		return
	}

	session := &AuthorizationSession{
		ID:                  sessionID,
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		State:               params.State,
		Scope:               params.Scope,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		CreatedAt:           h.now().Unix(),
	}

	if err := h.putSession(r.Context(), session); err != nil {
		h.logger.Error("Failed to save authorization session", logging.Err(err))
		h.recordFlow("authorize", logging.StatusError)
		h.writeError(w, ErrServerError("Failed to save authorization session"))
		return
	}

	h.logger.Info("Redirecting to upstream provider",
		logging.Operation("oauth.authorize"),
		logging.Provider(h.provider.Name()),
		logging.ClientID(params.ClientID),
	)
	h.recordFlow("authorize", logging.StatusSuccess)

	http.Redirect(w, r, h.provider.AuthCodeURL(sessionID), http.StatusFound)
}

// renderConsentPage shows the approval form.
func (h *Handler) renderConsentPage(w http.ResponseWriter, client *ClientRegistration, params authorizeParams) {
	clientName := client.ClientName
	if clientName == "" {
		clientName = client.ClientID
	}

	data := consentPageData{
		ClientName:          clientName,
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		ProviderName:        h.provider.Name(),
		State:               params.State,
		Scope:               params.Scope,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := consentTemplate.Execute(w, data); err != nil {
		h.logger.Error("Failed to render consent page", logging.Err(err))
	}
}

// approvalCookieValue extracts the raw approval cookie, if any.
func (h *Handler) approvalCookieValue(r *http.Request) string {
	cookie, err := r.Cookie(ApprovalCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setApprovalCookie writes the signed approval cookie back to the browser.
func (h *Handler) setApprovalCookie(w http.ResponseWriter, value string) {
	issuerURL, _ := url.Parse(h.config.Issuer)
	http.SetCookie(w, &http.Cookie{
		Name:     ApprovalCookieName,
		Value:    value,
		Path:     "/",
		Expires:  h.now().Add(ApprovalCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   issuerURL != nil && issuerURL.Scheme == "https",
	})
}
