package oauth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/audiencer/audiencer/internal/kv"
)

// Typed accessors over the kv.Store. Expiry is enforced on read as well,
// so the bridge behaves identically over stores with and without native
// TTL garbage collection.

func (h *Handler) putSession(ctx context.Context, session *AuthorizationSession) error {
	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return h.store.Put(ctx, SessionKeyPrefix+session.ID, value, h.config.SessionTTL)
}

func (h *Handler) getSession(ctx context.Context, sessionID string) (*AuthorizationSession, error) {
	value, err := h.store.Get(ctx, SessionKeyPrefix+sessionID)
	if err != nil {
		return nil, err
	}

	var session AuthorizationSession
	if err := json.Unmarshal(value, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.CreatedAt > 0 && h.now().Unix() > session.CreatedAt+int64(h.config.SessionTTL.Seconds()) {
		_ = h.store.Delete(ctx, SessionKeyPrefix+sessionID)
		return nil, kv.ErrNotFound
	}
	return &session, nil
}

func (h *Handler) deleteSession(ctx context.Context, sessionID string) error {
	return h.store.Delete(ctx, SessionKeyPrefix+sessionID)
}

func (h *Handler) putToken(ctx context.Context, tokenValue string, token *IssuedToken) error {
	value, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return h.store.Put(ctx, TokenKeyPrefix+tokenValue, value, h.config.TokenTTL)
}

func (h *Handler) getToken(ctx context.Context, tokenValue string) (*IssuedToken, error) {
	value, err := h.store.Get(ctx, TokenKeyPrefix+tokenValue)
	if err != nil {
		return nil, err
	}

	var token IssuedToken
	if err := json.Unmarshal(value, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	if token.ExpiresAt > 0 && h.now().Unix() > token.ExpiresAt {
		_ = h.store.Delete(ctx, TokenKeyPrefix+tokenValue)
		return nil, kv.ErrNotFound
	}
	return &token, nil
}

func (h *Handler) deleteToken(ctx context.Context, tokenValue string) error {
	return h.store.Delete(ctx, TokenKeyPrefix+tokenValue)
}

func (h *Handler) putClient(ctx context.Context, client *ClientRegistration) error {
	value, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to marshal client registration: %w", err)
	}
	return h.store.Put(ctx, ClientKeyPrefix+client.ClientID, value, h.config.ClientTTL)
}

func (h *Handler) getClient(ctx context.Context, clientID string) (*ClientRegistration, error) {
	value, err := h.store.Get(ctx, ClientKeyPrefix+clientID)
	if err != nil {
		return nil, err
	}

	var client ClientRegistration
	if err := json.Unmarshal(value, &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client registration: %w", err)
	}
	return &client, nil
}
