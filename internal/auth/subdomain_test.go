package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestHandshaker(t *testing.T, dir Directory, loc *fakeLocator, blocked ...string) *Handshaker {
	t.Helper()
	if dir == nil {
		dir = &fakeDirectory{}
	}
	if loc == nil {
		loc = &fakeLocator{}
	}
	return NewHandshaker(dir, NewTokenCodec(testSigningKey(1), time.Hour), loc, blocked)
}

func TestNegotiateRejectsBadCharacters(t *testing.T) {
	h := newTestHandshaker(t, nil, nil)
	clientID := uuid.New()

	for _, requested := range []string{"ad min", "my_app", "app!", "héllo", "my.app"} {
		_, err := h.negotiateSubDomain(context.Background(), requested, clientID)
		if !errors.Is(err, ErrInvalidSubDomain) {
			t.Errorf("negotiate(%q) error = %v, want ErrInvalidSubDomain", requested, err)
		}
	}
}

func TestNegotiateLowercasesName(t *testing.T) {
	h := newTestHandshaker(t, nil, nil)

	got, err := h.negotiateSubDomain(context.Background(), "MyApp", uuid.New())
	if err != nil {
		t.Fatalf("negotiate(MyApp) error = %v", err)
	}
	if got != "myapp" {
		t.Errorf("negotiate(MyApp) = %q, want %q", got, "myapp")
	}
}

func TestNegotiateAllowsHyphens(t *testing.T) {
	h := newTestHandshaker(t, nil, nil)

	got, err := h.negotiateSubDomain(context.Background(), "my-app-01", uuid.New())
	if err != nil {
		t.Fatalf("negotiate(my-app-01) error = %v", err)
	}
	if got != "my-app-01" {
		t.Errorf("negotiate(my-app-01) = %q", got)
	}
}

func TestNegotiateRejectsBlockedNames(t *testing.T) {
	h := newTestHandshaker(t, nil, nil, "admin", "WWW")

	// Blocked names answer like a real conflict, for any requester.
	for _, requested := range []string{"admin", "Admin", "www"} {
		_, err := h.negotiateSubDomain(context.Background(), requested, uuid.New())
		if !errors.Is(err, ErrSubDomainInUse) {
			t.Errorf("negotiate(%q) error = %v, want ErrSubDomainInUse", requested, err)
		}
	}
}

func TestNegotiateOwnership(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	loc := &fakeLocator{owners: map[string]uuid.UUID{"taken": owner}}
	h := newTestHandshaker(t, nil, loc)

	// The owner reclaims its own name.
	if _, err := h.negotiateSubDomain(context.Background(), "taken", owner); err != nil {
		t.Errorf("owner reclaiming own sub-domain: error = %v", err)
	}

	// Anyone else is turned away.
	if _, err := h.negotiateSubDomain(context.Background(), "taken", other); !errors.Is(err, ErrSubDomainInUse) {
		t.Errorf("other client on taken sub-domain: error = %v, want ErrSubDomainInUse", err)
	}

	// Unbound names are free for all.
	if _, err := h.negotiateSubDomain(context.Background(), "free", other); err != nil {
		t.Errorf("unbound sub-domain: error = %v", err)
	}
}

func TestNegotiateProceedsOnLocatorError(t *testing.T) {
	loc := &fakeLocator{err: errors.New("fleet unreachable")}
	h := newTestHandshaker(t, nil, loc)

	got, err := h.negotiateSubDomain(context.Background(), "myapp", uuid.New())
	if err != nil {
		t.Fatalf("negotiate with failing locator: error = %v, want optimistic success", err)
	}
	if got != "myapp" {
		t.Errorf("negotiate = %q, want %q", got, "myapp")
	}
}
