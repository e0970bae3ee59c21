// Package cluster answers which server instance, if any, currently serves a
// given sub-domain across the whole fleet.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDoesNotServeHost means no instance has the sub-domain bound.
var ErrDoesNotServeHost = errors.New("no instance serves this host")

// Instance identifies one server process in the fleet.
type Instance struct {
	// Addr is the host:port of the instance's internal API.
	Addr string
}

// Locator reports the live binding of a sub-domain: which instance serves it
// and which client identity owns it. Any error other than
// ErrDoesNotServeHost means the answer is unknown, not that the name is
// taken.
type Locator interface {
	InstanceFor(ctx context.Context, subDomain string) (Instance, uuid.UUID, error)
}

// HostAnswerer is the narrow view of the local tunnel registry the cluster
// layer needs: who, if anyone, owns a sub-domain on this instance.
type HostAnswerer interface {
	OwnerOf(subDomain string) (uuid.UUID, bool)
}

// LocalLocator answers from this instance's own registry.
type LocalLocator struct {
	Registry HostAnswerer
	Self     Instance
}

func (l LocalLocator) InstanceFor(_ context.Context, subDomain string) (Instance, uuid.UUID, error) {
	owner, ok := l.Registry.OwnerOf(subDomain)
	if !ok {
		return Instance{}, uuid.Nil, ErrDoesNotServeHost
	}
	return l.Self, owner, nil
}

// MultiLocator consults locators in order. The first positive answer wins;
// ErrDoesNotServeHost moves on to the next. If nobody answered positively
// and at least one locator failed, the failure is surfaced so callers know
// the fleet-wide answer is incomplete.
type MultiLocator []Locator

func (m MultiLocator) InstanceFor(ctx context.Context, subDomain string) (Instance, uuid.UUID, error) {
	var lastErr error
	for _, l := range m {
		instance, owner, err := l.InstanceFor(ctx, subDomain)
		switch {
		case err == nil:
			return instance, owner, nil
		case errors.Is(err, ErrDoesNotServeHost):
		default:
			lastErr = err
		}
	}
	if lastErr != nil {
		return Instance{}, uuid.Nil, fmt.Errorf("incomplete fleet answer: %w", lastErr)
	}
	return Instance{}, uuid.Nil, ErrDoesNotServeHost
}
