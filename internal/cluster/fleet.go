package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HostResponse is the internal API's answer for a served sub-domain.
type HostResponse struct {
	SubDomain string `json:"sub_domain"`
	ClientID  string `json:"client_id"`
}

const hostsPathPrefix = "/internal/api/hosts/"

// FleetLocator asks every peer instance over the internal HTTP API whether
// it serves a sub-domain. Peers come from a static list, a DNS name that
// resolves to all instances (headless-service style), or both.
type FleetLocator struct {
	// Peers are host:port internal API addresses of sibling instances.
	Peers []string
	// FleetHost, when set, is resolved on every query and each address is
	// combined with APIPort. Covers fleets that scale without config pushes.
	FleetHost string
	APIPort   string

	// Client defaults to a short-timeout http.Client; a slow peer must not
	// stall admission.
	Client *http.Client

	// Resolver defaults to net.DefaultResolver.
	Resolver interface {
		LookupHost(ctx context.Context, host string) ([]string, error)
	}
}

func (f *FleetLocator) InstanceFor(ctx context.Context, subDomain string) (Instance, uuid.UUID, error) {
	var lastErr error
	for _, addr := range f.peerAddrs(ctx) {
		owner, err := f.askPeer(ctx, addr, subDomain)
		switch {
		case err == nil:
			return Instance{Addr: addr}, owner, nil
		case errors.Is(err, ErrDoesNotServeHost):
		default:
			log.Printf("fleet peer %s did not answer for %q: %v", addr, subDomain, err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return Instance{}, uuid.Nil, lastErr
	}
	return Instance{}, uuid.Nil, ErrDoesNotServeHost
}

func (f *FleetLocator) peerAddrs(ctx context.Context) []string {
	addrs := append([]string(nil), f.Peers...)
	if f.FleetHost == "" {
		return addrs
	}
	resolver := f.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	hosts, err := resolver.LookupHost(ctx, f.FleetHost)
	if err != nil {
		log.Printf("fleet host %q did not resolve: %v", f.FleetHost, err)
		return addrs
	}
	for _, h := range hosts {
		addrs = append(addrs, net.JoinHostPort(h, f.APIPort))
	}
	return addrs
}

func (f *FleetLocator) askPeer(ctx context.Context, addr, subDomain string) (uuid.UUID, error) {
	url := "http://" + addr + hostsPathPrefix + subDomain
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return uuid.Nil, err
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return uuid.Nil, ErrDoesNotServeHost
	default:
		return uuid.Nil, fmt.Errorf("unexpected status %d from peer %s", resp.StatusCode, addr)
	}

	var body HostResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return uuid.Nil, fmt.Errorf("malformed answer from peer %s: %w", addr, err)
	}
	owner, err := uuid.Parse(body.ClientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed client id from peer %s: %w", addr, err)
	}
	return owner, nil
}
