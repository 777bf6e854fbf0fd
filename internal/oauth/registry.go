package oauth

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/audiencer/audiencer/internal/logging"
)

// ServeRegister handles Dynamic Client Registration (RFC 7591 subset).
//
// Registration is unconditionally accepted: any caller presenting at
// least one redirect URI receives a fresh client_id/client_secret pair.
// This permissiveness is deliberate, so inspector-style tools can
// discover and register themselves without prior arrangement.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordFlow("register", logging.StatusError)
		h.writeError(w, ErrInvalidRequest("Failed to parse registration request"))
		return
	}

	if len(req.RedirectURIs) == 0 {
		h.recordFlow("register", logging.StatusError)
		h.writeError(w, ErrInvalidRequest("At least one redirect_uri is required"))
		return
	}

	resp, err := h.registerClient(r, &req)
	if err != nil {
		h.logger.Error("Failed to register client", logging.Err(err))
		h.recordFlow("register", logging.StatusError)
		h.writeError(w, ErrServerError("Failed to register client"))
		return
	}

	h.logger.Info("Registered new OAuth client",
		logging.ClientID(resp.ClientID),
		"client_name", resp.ClientName,
		"redirect_uris", resp.RedirectURIs,
	)
	h.recordFlow("register", logging.StatusSuccess)

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// registerClient mints credentials, persists the registration, and builds
// the response document. The plain client secret appears only in the
// response; the store holds its bcrypt hash.
func (h *Handler) registerClient(r *http.Request, req *ClientRegistrationRequest) (*ClientRegistrationResponse, error) {
	clientID, err := generateSecureToken(ClientIDLength)
	if err != nil {
		return nil, err
	}
	clientSecret, err := generateSecureToken(ClientSecretLength)
	if err != nil {
		return nil, err
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = DefaultGrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = DefaultResponseTypes
	}

	now := h.now().Unix()
	client := &ClientRegistration{
		ClientID:                clientID,
		ClientSecretHash:        string(secretHash),
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: DefaultTokenEndpointAuthMethod,
		ClientName:              req.ClientName,
		IssuedAt:                now,
	}

	if err := h.putClient(r.Context(), client); err != nil {
		return nil, err
	}

	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret,
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0,
		RedirectURIs:            req.RedirectURIs,
		TokenEndpointAuthMethod: DefaultTokenEndpointAuthMethod,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		ClientName:              req.ClientName,
		Scope:                   req.Scope,
	}, nil
}

// validateClientSecret compares a presented secret against the stored
// bcrypt hash.
func validateClientSecret(client *ClientRegistration, clientSecret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)) == nil
}
