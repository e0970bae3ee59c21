package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"
)

// TunnelEntry is one admitted tunnel: the session carrying its traffic and
// the client identity that owns the sub-domain.
type TunnelEntry struct {
	Session  *yamux.Session
	ClientID uuid.UUID
}

// TunnelRegistry maps sub-domains to live tunnel sessions on this instance.
// It is the authoritative arbiter for sub-domain ownership here; the
// pre-check during negotiation is only a fast reject.
type TunnelRegistry struct {
	mu      sync.RWMutex
	tunnels map[string]*TunnelEntry
}

func NewTunnelRegistry() *TunnelRegistry {
	return &TunnelRegistry{
		tunnels: make(map[string]*TunnelEntry),
	}
}

// Claim atomically binds subDomain to clientID. It succeeds when the name is
// free or already bound to the same client (a reconnect replaces the old
// session); it fails when another client holds the name. The replaced
// session, if any, is returned so the caller can close it.
func (r *TunnelRegistry) Claim(subDomain string, clientID uuid.UUID, session *yamux.Session) (*yamux.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replaced *yamux.Session
	if existing, ok := r.tunnels[subDomain]; ok {
		if existing.ClientID != clientID {
			return nil, false
		}
		replaced = existing.Session
	}
	r.tunnels[subDomain] = &TunnelEntry{Session: session, ClientID: clientID}
	return replaced, true
}

// Unregister removes the binding, but only while session still holds it.
// Matching on the session rather than the client id matters on reconnect:
// the replaced session's cleanup would otherwise evict the fresh binding the
// same client just claimed.
func (r *TunnelRegistry) Unregister(subDomain string, session *yamux.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tunnels[subDomain]; ok && existing.Session == session {
		delete(r.tunnels, subDomain)
	}
}

// Lookup returns the entry serving a sub-domain, for the data plane.
func (r *TunnelRegistry) Lookup(subDomain string) (*TunnelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tunnels[subDomain]
	return entry, ok
}

// OwnerOf reports which client identity holds a sub-domain on this instance.
// It satisfies the cluster layer's HostAnswerer.
func (r *TunnelRegistry) OwnerOf(subDomain string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tunnels[subDomain]
	if !ok {
		return uuid.Nil, false
	}
	return entry.ClientID, true
}
