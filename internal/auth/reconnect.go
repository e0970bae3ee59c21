package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// ErrEmptyToken indicates the client presented a blank reconnect token.
var ErrEmptyToken = errors.New("empty reconnect token")

// tokenName scopes the signature so a reconnect token can never be replayed
// as some other securecookie-signed value.
const tokenName = "reconnect"

// DefaultTokenMaxAge bounds how long a disconnected client can resume its
// prior identity without re-authenticating.
const DefaultTokenMaxAge = 12 * time.Hour

// ReconnectTokenPayload is the identity a reconnect token asserts. The
// values are trusted verbatim once the signature checks out.
type ReconnectTokenPayload struct {
	ClientID  uuid.UUID
	SubDomain string
}

// TokenCodec signs and verifies reconnect tokens with the process-wide
// master signing key (HMAC-SHA256, constant-time compare, issue timestamp
// checked against maxAge).
type TokenCodec struct {
	sc *securecookie.SecureCookie
}

// NewTokenCodec builds a codec over signingKey. maxAge <= 0 falls back to
// DefaultTokenMaxAge.
func NewTokenCodec(signingKey []byte, maxAge time.Duration) *TokenCodec {
	if maxAge <= 0 {
		maxAge = DefaultTokenMaxAge
	}
	sc := securecookie.New(signingKey, nil)
	sc.MaxAge(int(maxAge.Seconds()))
	return &TokenCodec{sc: sc}
}

// Sign issues a token asserting payload.
func (c *TokenCodec) Sign(payload ReconnectTokenPayload) (string, error) {
	return c.sc.Encode(tokenName, payload)
}

// Verify decodes token and checks its signature and age. Malformed tokens,
// signature mismatches and expired tokens all fail.
func (c *TokenCodec) Verify(token string) (ReconnectTokenPayload, error) {
	if token == "" {
		return ReconnectTokenPayload{}, ErrEmptyToken
	}
	var payload ReconnectTokenPayload
	if err := c.sc.Decode(tokenName, token, &payload); err != nil {
		return ReconnectTokenPayload{}, err
	}
	return payload, nil
}
