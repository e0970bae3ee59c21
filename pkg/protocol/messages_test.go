package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestClientHelloDiscriminator(t *testing.T) {
	raw := `{"client_type":"auth","key":"sk_live_12345","sub_domain":"myapp"}`

	var hello ClientHello
	if err := json.Unmarshal([]byte(raw), &hello); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if hello.ClientType != ClientTypeAuth {
		t.Errorf("ClientType = %q, want %q", hello.ClientType, ClientTypeAuth)
	}
	if hello.SubDomain != "myapp" {
		t.Errorf("SubDomain = %q, want %q", hello.SubDomain, "myapp")
	}
	if hello.ReconnectToken != "" {
		t.Errorf("ReconnectToken = %q, want empty", hello.ReconnectToken)
	}
}

func TestFailureHellosCarryOnlyStatus(t *testing.T) {
	for _, hello := range []ServerHello{AuthFailed(), InvalidSubDomain(), SubDomainInUse()} {
		raw, err := json.Marshal(hello)
		if err != nil {
			t.Fatalf("marshal %v: %v", hello.Status, err)
		}
		// Failure responses must not leak assignment fields.
		if strings.Contains(string(raw), `"sub_domain":`) || strings.Contains(string(raw), `"client_id":`) {
			t.Errorf("failure hello %s leaked fields: %s", hello.Status, raw)
		}
	}
}

func TestSuccessHello(t *testing.T) {
	hello := Success("myapp", "d4c5ebcb-0000-0000-0000-000000000000", "token123")
	if hello.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", hello.Status, StatusSuccess)
	}
	if hello.SubDomain != "myapp" || hello.ReconnectToken != "token123" {
		t.Errorf("Success() = %+v", hello)
	}
}
