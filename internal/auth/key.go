package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log"

	"github.com/google/uuid"
)

// clientIDNamespace is the fixed namespace used to derive deterministic
// client identities from auth keys. It must never change: clients reclaim
// their sub-domains by re-deriving the same identity from the same key.
var clientIDNamespace = uuid.MustParse("5f2b6c44-8a1d-4f4e-9c37-6b1d2a9e0f58")

// HashKey turns a raw auth key into the lookup key stored in the account
// directory: SHA-256, URL-safe base64 without padding. Deterministic across
// restarts (no salt) so previously issued keys keep resolving.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ClientIDFor derives the stable client identity for an auth key.
func ClientIDFor(key string) uuid.UUID {
	return uuid.NewSHA1(clientIDNamespace, []byte(key))
}

// NewClientID generates a fresh identity for an anonymous session.
func NewClientID() uuid.UUID {
	return uuid.New()
}

const (
	subDomainAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	subDomainLength   = 10
)

// RandomSubDomain generates a sub-domain for clients that did not request
// one: lowercase alphanumeric, safe to hand out without sanitizing.
func RandomSubDomain() string {
	buf := make([]byte, subDomainLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in much deeper trouble
		// than a missing sub-domain.
		log.Fatalf("failed to read random bytes: %v", err)
	}
	for i, b := range buf {
		buf[i] = subDomainAlphabet[int(b)%len(subDomainAlphabet)]
	}
	return string(buf)
}
