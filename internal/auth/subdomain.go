package auth

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/codedmart/tunnelto/internal/cluster"
)

var (
	ErrInvalidSubDomain = errors.New("sub-domain may only contain lowercase letters, digits and hyphens")
	ErrSubDomainInUse   = errors.New("sub-domain is already in use")
)

// negotiateSubDomain sanitizes a client-requested sub-domain and pre-checks
// it against the blocked list and the live fleet. The returned name is the
// lowercased form; any error maps onto exactly one ServerHello failure.
func (h *Handshaker) negotiateSubDomain(ctx context.Context, requested string, clientID uuid.UUID) (string, error) {
	subDomain := strings.ToLower(requested)

	for _, r := range subDomain {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "", ErrInvalidSubDomain
		}
	}

	// Blocked names answer exactly like a live conflict so a probing client
	// cannot tell which names are reserved.
	if _, blocked := h.blocked[subDomain]; blocked {
		return "", ErrSubDomainInUse
	}

	_, owner, err := h.instances.InstanceFor(ctx, subDomain)
	switch {
	case errors.Is(err, cluster.ErrDoesNotServeHost):
		// Nobody serves it; it's free.
	case err == nil:
		if owner != clientID {
			return "", ErrSubDomainInUse
		}
		// The client is reclaiming its own sub-domain after a disconnect.
	default:
		// Fleet lookup trouble must not block admission; the registry claim
		// is the authoritative arbiter anyway.
		log.Printf("instance lookup for sub-domain %q failed, proceeding: %v", subDomain, err)
	}

	return subDomain, nil
}
