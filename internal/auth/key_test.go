package auth

import (
	"strings"
	"testing"
)

func TestHashKeyIsStable(t *testing.T) {
	a := HashKey("sk_live_12345")
	b := HashKey("sk_live_12345")
	if a != b {
		t.Errorf("HashKey not stable: %q vs %q", a, b)
	}
}

func TestHashKeyDistinguishesKeys(t *testing.T) {
	if HashKey("key-one") == HashKey("key-two") {
		t.Error("different keys produced the same hash")
	}
}

func TestHashKeyIsURLSafe(t *testing.T) {
	hash := HashKey("some/key+with=padding chars")
	if strings.ContainsAny(hash, "+/=") {
		t.Errorf("hash %q contains non-URL-safe characters", hash)
	}
	if hash == "" {
		t.Error("hash is empty")
	}
}

func TestClientIDForIsDeterministic(t *testing.T) {
	a := ClientIDFor("sk_live_12345")
	b := ClientIDFor("sk_live_12345")
	if a != b {
		t.Errorf("ClientIDFor not deterministic: %s vs %s", a, b)
	}
	if a == ClientIDFor("sk_live_67890") {
		t.Error("different keys derived the same client id")
	}
}

func TestNewClientIDIsUnique(t *testing.T) {
	if NewClientID() == NewClientID() {
		t.Error("NewClientID returned the same id twice")
	}
}

func TestRandomSubDomain(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		sub := RandomSubDomain()
		if len(sub) != subDomainLength {
			t.Fatalf("RandomSubDomain() = %q, want length %d", sub, subDomainLength)
		}
		for _, r := range sub {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				t.Fatalf("RandomSubDomain() = %q contains %q", sub, r)
			}
		}
		seen[sub] = true
	}
	if len(seen) < 2 {
		t.Error("RandomSubDomain produced the same name 32 times")
	}
}
