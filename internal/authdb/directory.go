// Package authdb implements the account directory: a point lookup from a
// hashed auth key to the account that issued it. The DynamoDB directory is
// the production backend; the SQLite one serves local development.
package authdb

import "errors"

var (
	// ErrAccountNotFound means the lookup succeeded but no account owns the
	// key. Terminal from the handshake's point of view.
	ErrAccountNotFound = errors.New("the authentication key is invalid")

	// ErrInvalidAccountID means the stored record is corrupt: the account id
	// attribute is missing or unparseable. Also terminal.
	ErrInvalidAccountID = errors.New("the authentication key maps to a malformed account id")

	// ErrUnavailable wraps backend/network failures. The caller may retry a
	// whole handshake attempt; this package never retries internally.
	ErrUnavailable = errors.New("auth directory unavailable")
)
