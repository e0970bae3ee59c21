// Package server runs the control plane: it accepts persistent client
// connections, drives the admission handshake over the first stream and owns
// the sub-domain claim that finally binds an admitted client.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/codedmart/tunnelto/internal/auth"
	"github.com/codedmart/tunnelto/internal/sentry"
	"github.com/codedmart/tunnelto/pkg/protocol"
)

const handshakeTimeout = 30 * time.Second

// Admitter decides whether a connection's first stream carries a valid
// handshake. Satisfied by *auth.Handshaker.
type Admitter interface {
	Handshake(ctx context.Context, stream io.ReadWriter) (*auth.ClientHandshake, error)
}

// TokenSigner issues the reconnect token handed out on admission. Satisfied
// by *auth.TokenCodec.
type TokenSigner interface {
	Sign(payload auth.ReconnectTokenPayload) (string, error)
}

// Server is the control-plane listener.
type Server struct {
	Registry  *TunnelRegistry
	Admitter  Admitter
	Tokens    TokenSigner
	Port      string
	TLSConfig *tls.Config

	// MaxConnections limits concurrent connections (0 = unlimited).
	MaxConnections int

	listener net.Listener
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	connSem  chan struct{}
}

func NewServer(port string, registry *TunnelRegistry, admitter Admitter, tokens TokenSigner, tlsConfig *tls.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Registry:       registry,
		Admitter:       admitter,
		Tokens:         tokens,
		Port:           port,
		TLSConfig:      tlsConfig,
		MaxConnections: 1000,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *Server) Start() error {
	var err error

	if s.TLSConfig != nil {
		s.listener, err = tls.Listen("tcp", s.Port, s.TLSConfig)
	} else {
		s.listener, err = net.Listen("tcp", s.Port)
	}
	if err != nil {
		return err
	}

	if s.MaxConnections > 0 {
		s.connSem = make(chan struct{}, s.MaxConnections)
	}

	log.Printf("Control plane listening on %s (TLS=%v, MaxConn=%d)", s.Port, s.TLSConfig != nil, s.MaxConnections)

	for {
		select {
		case <-s.ctx.Done():
			log.Println("Control plane: shutdown signal received, stopping accept loop")
			return nil
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				log.Println("Control plane: listener closed during shutdown")
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Printf("Temporary accept error: %v, retrying...", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}

			sentry.CaptureError(err, "control plane accept failed")
			return err
		}

		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.ctx.Done():
				conn.Close()
				return nil
			}
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() {
				if s.connSem != nil {
					<-s.connSem
				}
			}()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Panic recovered in handleConnection: %v", r)
				}
			}()
			s.handleConnection(c)
		}(conn)
	}
}

// Shutdown gracefully stops the server: closes the listener, then waits for
// active connections within the context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Control plane: initiating shutdown...")

	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			log.Printf("Error closing listener: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Control plane: all connections closed gracefully")
		return nil
	case <-ctx.Done():
		log.Println("Control plane: shutdown timeout, forcing close")
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	log.Printf("New connection from %s", conn.RemoteAddr())

	session, err := yamux.Server(conn, nil)
	if err != nil {
		log.Printf("Failed to create yamux session for %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	stream, err := session.Accept()
	if err != nil {
		log.Printf("Failed to accept handshake stream from %s: %v", conn.RemoteAddr(), err)
		session.Close()
		return
	}

	// The handshake must finish promptly; admitted sessions then live until
	// the client goes away.
	_ = stream.SetDeadline(time.Now().Add(handshakeTimeout))

	ctx, cancel := context.WithTimeout(s.ctx, handshakeTimeout)
	defer cancel()

	handshake, err := s.Admitter.Handshake(ctx, stream)
	if err != nil {
		// The admitter already sent whatever wire signal this rejection
		// gets; nothing more goes to the client.
		log.Printf("Rejected connection from %s: %v", conn.RemoteAddr(), err)
		session.Close()
		return
	}

	_ = stream.SetDeadline(time.Time{})

	// Final authoritative claim. Negotiation only pre-checked; another
	// handshake may have won the name in between.
	replaced, ok := s.Registry.Claim(handshake.SubDomain, handshake.ID, session)
	if !ok {
		log.Printf("Claim lost for sub-domain %q, rejecting %s", handshake.SubDomain, conn.RemoteAddr())
		_ = json.NewEncoder(stream).Encode(protocol.SubDomainInUse())
		session.Close()
		return
	}
	if replaced != nil {
		log.Printf("Replacing previous session for sub-domain %q", handshake.SubDomain)
		replaced.Close()
	}

	token, err := s.Tokens.Sign(auth.ReconnectTokenPayload{
		ClientID:  handshake.ID,
		SubDomain: handshake.SubDomain,
	})
	if err != nil {
		// The tunnel still works without a token; the client just cannot
		// resume this identity later.
		sentry.CaptureError(err, "failed to sign reconnect token")
		token = ""
	}

	resp := protocol.Success(handshake.SubDomain, handshake.ID.String(), token)
	if err := json.NewEncoder(stream).Encode(resp); err != nil {
		log.Printf("Failed to send success response to %s: %v", conn.RemoteAddr(), err)
		s.Registry.Unregister(handshake.SubDomain, session)
		session.Close()
		return
	}

	log.Printf("Admitted client %s on sub-domain %q (anonymous=%v)", handshake.ID, handshake.SubDomain, handshake.IsAnonymous)

	go func() {
		<-session.CloseChan()
		log.Printf("Session closed for sub-domain %q, cleaning up", handshake.SubDomain)
		s.Registry.Unregister(handshake.SubDomain, session)
	}()
}
