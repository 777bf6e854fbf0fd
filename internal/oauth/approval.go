package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidCookie is returned by Verify for a missing signature, a
// signature mismatch, or a malformed payload.
var ErrInvalidCookie = errors.New("invalid approval cookie")

// ApprovalSigner signs and verifies the consent cookie: the list of
// client IDs a browser has already approved, serialized as JSON and
// authenticated with HMAC-SHA256. The cookie lives entirely client-side;
// nothing about approvals is persisted on the server.
//
// Cookie format: base64url(JSON list) + "." + base64url(signature).
type ApprovalSigner struct {
	key []byte
}

// NewApprovalSigner creates a signer with the configured HMAC key.
func NewApprovalSigner(key []byte) *ApprovalSigner {
	return &ApprovalSigner{key: key}
}

// Sign serializes and signs a list of approved client IDs.
func (s *ApprovalSigner) Sign(clientIDs []string) (string, error) {
	if clientIDs == nil {
		clientIDs = []string{}
	}
	payload, err := json.Marshal(clientIDs)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(s.mac(payload)), nil
}

// Verify checks the signature and returns the approved client IDs.
// Any tampering or malformed encoding yields ErrInvalidCookie.
func (s *ApprovalSigner) Verify(value string) ([]string, error) {
	payloadPart, sigPart, found := strings.Cut(value, ".")
	if !found {
		return nil, ErrInvalidCookie
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return nil, ErrInvalidCookie
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, ErrInvalidCookie
	}

	if !hmac.Equal(sig, s.mac(payload)) {
		return nil, ErrInvalidCookie
	}

	var clientIDs []string
	if err := json.Unmarshal(payload, &clientIDs); err != nil {
		return nil, ErrInvalidCookie
	}
	return clientIDs, nil
}

// Approve adds clientID to the approvals carried by an existing cookie
// value and returns the re-signed cookie. An empty or invalid existing
// value starts a fresh list rather than failing: a broken cookie just
// means the user consents again.
func (s *ApprovalSigner) Approve(existing, clientID string) (string, error) {
	var clientIDs []string
	if existing != "" {
		if verified, err := s.Verify(existing); err == nil {
			clientIDs = verified
		}
	}

	for _, id := range clientIDs {
		if id == clientID {
			return s.Sign(clientIDs)
		}
	}
	return s.Sign(append(clientIDs, clientID))
}

// Approved reports whether clientID is on the signed approval list. An
// invalid cookie is treated as no approvals.
func (s *ApprovalSigner) Approved(value, clientID string) bool {
	clientIDs, err := s.Verify(value)
	if err != nil {
		return false
	}
	for _, id := range clientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

func (s *ApprovalSigner) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write(payload)
	return m.Sum(nil)
}
