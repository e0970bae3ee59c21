// Package protocol defines the control-plane handshake messages exchanged
// between a tunneling client and the server over the first stream of the
// persistent connection.
package protocol

// ClientType discriminates the two kinds of hello a client can send.
type ClientType string

const (
	ClientTypeAnonymous ClientType = "anonymous"
	ClientTypeAuth      ClientType = "auth"
)

// ClientHello is the first message sent by the client. Key is required for
// "auth" clients. SubDomain and ReconnectToken are optional; a reconnect
// token is only considered when no explicit sub-domain is requested.
type ClientHello struct {
	ClientType     ClientType `json:"client_type"`
	Key            string     `json:"key,omitempty"`
	SubDomain      string     `json:"sub_domain,omitempty"`
	ReconnectToken string     `json:"reconnect_token,omitempty"`
}

// ServerHelloStatus is the closed set of handshake outcomes the server can
// put on the wire. Exactly one ServerHello is sent per attempt.
type ServerHelloStatus string

const (
	StatusSuccess          ServerHelloStatus = "success"
	StatusAuthFailed       ServerHelloStatus = "auth_failed"
	StatusInvalidSubDomain ServerHelloStatus = "invalid_sub_domain"
	StatusSubDomainInUse   ServerHelloStatus = "sub_domain_in_use"
)

// ServerHello is the server's reply. The admission layer itself only ever
// sends the failure variants; Success is sent by the control plane after the
// sub-domain claim lands, and carries a fresh reconnect token the client can
// present to resume this identity after a disconnect.
type ServerHello struct {
	Status         ServerHelloStatus `json:"status"`
	SubDomain      string            `json:"sub_domain,omitempty"`
	ClientID       string            `json:"client_id,omitempty"`
	ReconnectToken string            `json:"reconnect_token,omitempty"`
}

func Success(subDomain, clientID, reconnectToken string) ServerHello {
	return ServerHello{
		Status:         StatusSuccess,
		SubDomain:      subDomain,
		ClientID:       clientID,
		ReconnectToken: reconnectToken,
	}
}

func AuthFailed() ServerHello {
	return ServerHello{Status: StatusAuthFailed}
}

func InvalidSubDomain() ServerHello {
	return ServerHello{Status: StatusInvalidSubDomain}
}

func SubDomainInUse() ServerHello {
	return ServerHello{Status: StatusSubDomainInUse}
}
