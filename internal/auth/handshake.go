// Package auth implements connection admission for tunneling clients: the
// hello handshake, auth-key hashing and lookup, sub-domain negotiation and
// reconnect tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/codedmart/tunnelto/internal/cluster"
	"github.com/codedmart/tunnelto/pkg/protocol"
)

// Directory resolves a hashed auth key to the account it belongs to. The
// returned account id is only used as proof the key exists; session identity
// stays derived from the key itself.
type Directory interface {
	AccountIDForKey(ctx context.Context, lookupKey string) (uuid.UUID, error)
}

// ClientHandshake is the result of a successful admission and the only
// artifact this package hands to the control plane.
type ClientHandshake struct {
	ID          uuid.UUID
	SubDomain   string
	IsAnonymous bool
}

// Handshaker drives the admission state machine over one stream. All
// collaborators are injected so each branch is testable with fakes.
type Handshaker struct {
	directory Directory
	tokens    *TokenCodec
	instances cluster.Locator
	blocked   map[string]struct{}
}

func NewHandshaker(directory Directory, tokens *TokenCodec, instances cluster.Locator, blockedSubDomains []string) *Handshaker {
	blocked := make(map[string]struct{}, len(blockedSubDomains))
	for _, s := range blockedSubDomains {
		blocked[strings.ToLower(s)] = struct{}{}
	}
	return &Handshaker{
		directory: directory,
		tokens:    tokens,
		instances: instances,
		blocked:   blocked,
	}
}

// Handshake reads one ClientHello from stream and either admits the client
// or rejects it. On rejection at most one failure ServerHello is written;
// closing the connection is the caller's job. Success is never confirmed
// here — the control plane does that once it has claimed the sub-domain.
func (h *Handshaker) Handshake(ctx context.Context, stream io.ReadWriter) (*ClientHandshake, error) {
	var hello protocol.ClientHello
	if err := json.NewDecoder(stream).Decode(&hello); err != nil {
		if isConnectionError(err) {
			// Nothing arrived; the connection is presumed already broken
			// and gets no response.
			return nil, fmt.Errorf("no client hello: %w", err)
		}
		h.reply(stream, protocol.AuthFailed())
		return nil, fmt.Errorf("invalid client hello: %w", err)
	}

	switch hello.ClientType {
	case protocol.ClientTypeAuth:
	case protocol.ClientTypeAnonymous:
		// Silent by policy: a bare anonymous hello gets no signal at all.
		return nil, errors.New("anonymous clients are not allowed")
	default:
		h.reply(stream, protocol.AuthFailed())
		return nil, fmt.Errorf("unknown client type %q", hello.ClientType)
	}

	if hello.Key == "" {
		return nil, errors.New("auth client sent an empty key")
	}

	if _, err := h.directory.AccountIDForKey(ctx, HashKey(hello.Key)); err != nil {
		// Silent rejection: never confirm to a probing client whether a key
		// exists, and never log the key itself.
		return nil, fmt.Errorf("auth key rejected: %w", err)
	}

	switch {
	case hello.SubDomain != "":
		clientID := ClientIDFor(hello.Key)
		subDomain, err := h.negotiateSubDomain(ctx, hello.SubDomain, clientID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidSubDomain):
				h.reply(stream, protocol.InvalidSubDomain())
			case errors.Is(err, ErrSubDomainInUse):
				h.reply(stream, protocol.SubDomainInUse())
			}
			return nil, err
		}
		return &ClientHandshake{ID: clientID, SubDomain: subDomain}, nil

	case hello.ReconnectToken != "":
		payload, err := h.tokens.Verify(hello.ReconnectToken)
		if err != nil {
			h.reply(stream, protocol.AuthFailed())
			return nil, fmt.Errorf("invalid reconnect token: %w", err)
		}
		log.Printf("accepted reconnect token for client %s (sub-domain %q)", payload.ClientID, payload.SubDomain)
		return &ClientHandshake{ID: payload.ClientID, SubDomain: payload.SubDomain, IsAnonymous: true}, nil

	default:
		return &ClientHandshake{ID: NewClientID(), SubDomain: RandomSubDomain(), IsAnonymous: true}, nil
	}
}

// reply writes the single failure ServerHello for this attempt. Best effort:
// the connection is torn down right after either way.
func (h *Handshaker) reply(w io.Writer, hello protocol.ServerHello) {
	if err := json.NewEncoder(w).Encode(hello); err != nil {
		log.Printf("failed to send server hello: %v", err)
	}
}

// isConnectionError reports whether decoding failed because the connection
// gave out, as opposed to the client sending malformed bytes.
func isConnectionError(err error) bool {
	var netErr net.Error
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &netErr)
}
