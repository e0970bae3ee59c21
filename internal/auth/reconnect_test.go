package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testSigningKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec(testSigningKey(1), time.Hour)
	payload := ReconnectTokenPayload{
		ClientID:  uuid.New(),
		SubDomain: "prev",
	}

	token, err := codec.Sign(payload)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if token == "" {
		t.Fatal("Sign() returned an empty token")
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.ClientID != payload.ClientID {
		t.Errorf("ClientID = %s, want %s", got.ClientID, payload.ClientID)
	}
	if got.SubDomain != payload.SubDomain {
		t.Errorf("SubDomain = %q, want %q", got.SubDomain, payload.SubDomain)
	}
}

func TestTokenFailsUnderDifferentKey(t *testing.T) {
	signer := NewTokenCodec(testSigningKey(1), time.Hour)
	verifier := NewTokenCodec(testSigningKey(2), time.Hour)

	token, err := signer.Sign(ReconnectTokenPayload{ClientID: uuid.New(), SubDomain: "prev"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := verifier.Verify(token); err == nil {
		t.Error("Verify() should fail under a different signing key")
	}
}

func TestTokenFailsAfterMutation(t *testing.T) {
	codec := NewTokenCodec(testSigningKey(1), time.Hour)
	token, err := codec.Sign(ReconnectTokenPayload{ClientID: uuid.New(), SubDomain: "prev"})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	// Flip one character somewhere in the middle.
	i := len(token) / 2
	mutated := []byte(token)
	if mutated[i] == 'A' {
		mutated[i] = 'B'
	} else {
		mutated[i] = 'A'
	}

	if _, err := codec.Verify(string(mutated)); err == nil {
		t.Error("Verify() should fail after a single-character mutation")
	}
}

func TestTokenRejectsMalformedInput(t *testing.T) {
	codec := NewTokenCodec(testSigningKey(1), time.Hour)
	for _, token := range []string{"", "not-a-token", "a|b|c"} {
		if _, err := codec.Verify(token); err == nil {
			t.Errorf("Verify(%q) should fail", token)
		}
	}
}
