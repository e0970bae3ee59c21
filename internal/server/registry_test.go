package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"
)

func TestRegistryClaimFreeSubDomain(t *testing.T) {
	r := NewTunnelRegistry()
	clientID := uuid.New()

	replaced, ok := r.Claim("myapp", clientID, nil)
	if !ok {
		t.Fatal("Claim() on a free sub-domain should succeed")
	}
	if replaced != nil {
		t.Error("Claim() on a free sub-domain should replace nothing")
	}

	owner, found := r.OwnerOf("myapp")
	if !found || owner != clientID {
		t.Errorf("OwnerOf() = %s, %v; want %s, true", owner, found, clientID)
	}
}

func TestRegistryClaimConflict(t *testing.T) {
	r := NewTunnelRegistry()
	first := uuid.New()
	second := uuid.New()

	if _, ok := r.Claim("myapp", first, nil); !ok {
		t.Fatal("first Claim() should succeed")
	}
	if _, ok := r.Claim("myapp", second, nil); ok {
		t.Error("Claim() by another client should fail")
	}

	// The original owner keeps the name.
	owner, _ := r.OwnerOf("myapp")
	if owner != first {
		t.Errorf("OwnerOf() = %s, want %s", owner, first)
	}
}

func TestRegistryReclaimBySameClient(t *testing.T) {
	r := NewTunnelRegistry()
	clientID := uuid.New()
	old := &yamux.Session{}
	fresh := &yamux.Session{}

	r.Claim("myapp", clientID, old)
	replaced, ok := r.Claim("myapp", clientID, fresh)
	if !ok {
		t.Fatal("a client must be able to reclaim its own sub-domain")
	}
	if replaced != old {
		t.Error("reclaiming should hand back the session being replaced")
	}
}

func TestRegistryUnregisterSessionGuard(t *testing.T) {
	r := NewTunnelRegistry()
	clientID := uuid.New()
	current := &yamux.Session{}
	stale := &yamux.Session{}

	r.Claim("myapp", clientID, current)

	// A stale cleanup must not evict the current session.
	r.Unregister("myapp", stale)
	if _, found := r.OwnerOf("myapp"); !found {
		t.Error("Unregister() by a non-holding session removed the binding")
	}

	r.Unregister("myapp", current)
	if _, found := r.OwnerOf("myapp"); found {
		t.Error("Unregister() by the holding session should remove the binding")
	}
}

func TestRegistryReplacedSessionCleanupKeepsBinding(t *testing.T) {
	// Reconnect by the same client: the replaced session's cleanup runs
	// after the new claim and must not unbind the fresh session.
	r := NewTunnelRegistry()
	clientID := uuid.New()
	old := &yamux.Session{}
	fresh := &yamux.Session{}

	r.Claim("myapp", clientID, old)
	if _, ok := r.Claim("myapp", clientID, fresh); !ok {
		t.Fatal("reclaim by the same client should succeed")
	}

	r.Unregister("myapp", old)

	entry, found := r.Lookup("myapp")
	if !found {
		t.Fatal("replaced session's cleanup evicted the new binding")
	}
	if entry.Session != fresh {
		t.Error("binding should point at the fresh session")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewTunnelRegistry()
	clientID := uuid.New()

	if _, found := r.Lookup("myapp"); found {
		t.Error("Lookup() on an empty registry should miss")
	}

	r.Claim("myapp", clientID, nil)
	entry, found := r.Lookup("myapp")
	if !found || entry.ClientID != clientID {
		t.Errorf("Lookup() = %+v, %v; want entry owned by %s", entry, found, clientID)
	}
}
