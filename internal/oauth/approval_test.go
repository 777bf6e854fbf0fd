package oauth

import (
	"errors"
	"strings"
	"testing"
)

func TestApprovalSigner_SignVerify(t *testing.T) {
	signer := NewApprovalSigner([]byte("test-key"))

	value, err := signer.Sign([]string{"client-a", "client-b"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !strings.Contains(value, ".") {
		t.Fatalf("signed value %q has no signature separator", value)
	}

	clients, err := signer.Verify(value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(clients) != 2 || clients[0] != "client-a" || clients[1] != "client-b" {
		t.Errorf("Verify() = %v, want [client-a client-b]", clients)
	}
}

func TestApprovalSigner_SignNil(t *testing.T) {
	signer := NewApprovalSigner([]byte("test-key"))

	value, err := signer.Sign(nil)
	if err != nil {
		t.Fatalf("Sign(nil) error = %v", err)
	}
	clients, err := signer.Verify(value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(clients) != 0 {
		t.Errorf("Verify() = %v, want empty list", clients)
	}
}

func TestApprovalSigner_VerifyRejects(t *testing.T) {
	signer := NewApprovalSigner([]byte("test-key"))
	other := NewApprovalSigner([]byte("other-key"))

	good, err := signer.Sign([]string{"client-a"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	foreign, err := other.Sign([]string{"client-a"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	tests := []struct {
		name  string
		value string
	}{
		{"empty value", ""},
		{"no separator", "bm90LWEtY29va2ll"},
		{"tampered payload", "dGFtcGVyZWQ" + good[strings.Index(good, "."):]},
		{"tampered signature", good[:strings.Index(good, ".")+1] + "AAAA"},
		{"wrong key", foreign},
		{"not base64", "!!!.???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := signer.Verify(tt.value); !errors.Is(err, ErrInvalidCookie) {
				t.Errorf("Verify(%q) error = %v, want ErrInvalidCookie", tt.value, err)
			}
		})
	}
}

func TestApprovalSigner_Approve(t *testing.T) {
	signer := NewApprovalSigner([]byte("test-key"))

	// First approval from an empty cookie.
	value, err := signer.Approve("", "client-a")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !signer.Approved(value, "client-a") {
		t.Error("Approved() = false after approval")
	}
	if signer.Approved(value, "client-b") {
		t.Error("Approved() = true for an unapproved client")
	}

	// Second client is appended, first is kept.
	value, err = signer.Approve(value, "client-b")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !signer.Approved(value, "client-a") || !signer.Approved(value, "client-b") {
		t.Error("Approve() lost an earlier approval")
	}

	// Re-approving does not duplicate the entry.
	value, err = signer.Approve(value, "client-a")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	clients, err := signer.Verify(value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(clients) != 2 {
		t.Errorf("Verify() = %v, want exactly 2 clients", clients)
	}
}

func TestApprovalSigner_ApproveDiscardsInvalidCookie(t *testing.T) {
	signer := NewApprovalSigner([]byte("test-key"))

	value, err := signer.Approve("garbage-cookie-value", "client-a")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	clients, err := signer.Verify(value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(clients) != 1 || clients[0] != "client-a" {
		t.Errorf("Verify() = %v, want [client-a]", clients)
	}
}

func TestApprovalSigner_ApprovedInvalidCookie(t *testing.T) {
	signer := NewApprovalSigner([]byte("test-key"))

	if signer.Approved("garbage", "client-a") {
		t.Error("Approved() = true for an unverifiable cookie")
	}
	if signer.Approved("", "client-a") {
		t.Error("Approved() = true for an empty cookie")
	}
}
