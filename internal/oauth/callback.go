package oauth

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/audiencer/audiencer/internal/kv"
	"github.com/audiencer/audiencer/internal/logging"
)

// ServeCallback handles the upstream provider's redirect back to us. The
// state parameter carries the session ID minted by ServeAuthorize; a valid
// session is consumed here regardless of outcome on the happy path.
//
// On success an access token is minted whose opaque value doubles as the
// authorization code sent downstream, and the browser is redirected to the
// client's redirect_uri with code and the client's original state.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	// Upstream reports denial and other failures via the error parameter.
	if upstreamErr := query.Get("error"); upstreamErr != "" {
		h.logger.Warn("Upstream provider returned an error",
			logging.Operation("oauth.callback"),
			logging.Provider(h.provider.Name()),
			logging.Err(errors.New(upstreamErr)),
		)
		h.recordFlow("callback", logging.StatusError)
		h.writeError(w, ErrAccessDenied("Upstream provider denied the authorization request"))
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		h.writeError(w, ErrInvalidRequest("state and code are required"))
		return
	}

	session, err := h.getSession(r.Context(), state)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			h.recordFlow("callback", logging.StatusError)
			h.writeError(w, ErrInvalidRequest("Invalid or expired authorization session"))
			return
		}
		h.logger.Error("Failed to load authorization session", logging.Err(err))
		h.writeError(w, ErrServerError("Failed to load authorization session"))
		return
	}

	upstreamToken, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("Upstream code exchange failed",
			logging.Operation("oauth.callback"),
			logging.Provider(h.provider.Name()),
			logging.Err(err),
		)
		h.recordFlow("callback", logging.StatusError)
		h.writeError(w, ErrUpstreamError("Failed to exchange authorization code with upstream provider"))
		return
	}

	profile, err := h.provider.FetchProfile(r.Context(), upstreamToken)
	if err != nil {
		h.logger.Error("Failed to fetch upstream profile",
			logging.Operation("oauth.callback"),
			logging.Provider(h.provider.Name()),
			logging.Err(err),
		)
		h.recordFlow("callback", logging.StatusError)
		h.writeError(w, ErrServerError("Failed to fetch user profile from upstream provider"))
		return
	}

	accessToken, err := generateSecureToken(AccessTokenLength)
	if err != nil {
		h.writeError(w, ErrServerError("Failed to generate access token"))
		return
	}

	now := h.now()
	token := &IssuedToken{
		Principal: Principal{
			ID:                  profile.ID,
			DisplayName:         profile.Name,
			Email:               profile.Email,
			UpstreamAccessToken: upstreamToken.AccessToken,
		},
		UpstreamRefreshToken: upstreamToken.RefreshToken,
		ClientID:             session.ClientID,
		Scope:                session.Scope,
		CodeChallenge:        session.CodeChallenge,
		CodeChallengeMethod:  session.CodeChallengeMethod,
		CreatedAt:            now.Unix(),
		ExpiresAt:            now.Add(h.config.TokenTTL).Unix(),
	}

	if err := h.putToken(r.Context(), accessToken, token); err != nil {
		h.logger.Error("Failed to save access token", logging.Err(err))
		h.writeError(w, ErrServerError("Failed to save access token"))
		return
	}

	// The session is single use; drop it before redirecting downstream.
	if err := h.deleteSession(r.Context(), session.ID); err != nil {
		h.logger.Warn("Failed to delete authorization session", logging.Err(err))
	}

	h.logger.Info("Upstream authorization completed",
		logging.Operation("oauth.callback"),
		logging.Provider(h.provider.Name()),
		logging.ClientID(session.ClientID),
		logging.UserHash(profile.Email),
	)
	h.recordFlow("callback", logging.StatusSuccess)

	redirect, err := url.Parse(session.RedirectURI)
	if err != nil {
		h.writeError(w, ErrInvalidRequest("Invalid redirect_uri in authorization session"))
		return
	}
	q := redirect.Query()
	q.Set("code", accessToken)
	q.Set("state", session.State)
	redirect.RawQuery = q.Encode()

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}
