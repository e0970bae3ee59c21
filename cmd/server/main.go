package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"

	"github.com/codedmart/tunnelto/internal/auth"
	"github.com/codedmart/tunnelto/internal/authdb"
	"github.com/codedmart/tunnelto/internal/cluster"
	"github.com/codedmart/tunnelto/internal/config"
	"github.com/codedmart/tunnelto/internal/sentry"
	"github.com/codedmart/tunnelto/internal/server"
)

const shutdownTimeout = 30 * time.Second

// devAuthKey is seeded into the SQLite directory when running without
// DynamoDB so a local client can connect out of the box.
const devAuthKey = "sk_live_12345"

var rootCmd = &cobra.Command{
	Use:   "tunnelto-server",
	Short: "Reverse tunnel server with authenticated sub-domain admission",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := sentry.Init(cfg.SentryDSN); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer sentry.Flush()

	ctx := context.Background()

	// 1. Account directory: DynamoDB in production, SQLite locally.
	directory, cleanup, err := newDirectory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init account directory: %w", err)
	}
	defer cleanup()

	// 2. Registry and fleet-wide instance locator.
	registry := server.NewTunnelRegistry()
	locator := cluster.MultiLocator{
		cluster.LocalLocator{Registry: registry, Self: cluster.Instance{Addr: "localhost" + cfg.InternalAPIPort}},
		&cluster.FleetLocator{
			Peers:     cfg.FleetPeers,
			FleetHost: cfg.FleetHost,
			APIPort:   portOf(cfg.InternalAPIPort),
		},
	}

	// 3. Admission pipeline.
	tokens := auth.NewTokenCodec(cfg.MasterSigKey, cfg.TokenMaxAge)
	admitter := auth.NewHandshaker(directory, tokens, locator, cfg.BlockedSubDomains)

	// 4. TLS via autocert when a public domain is configured.
	var tlsConfig *tls.Config
	if cfg.DomainName != "" {
		cacheDir := "certs"
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return fmt.Errorf("create cert cache dir: %w", err)
		}
		manager := &autocert.Manager{
			Cache:      autocert.DirCache(cacheDir),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.DomainName, "*."+cfg.DomainName),
			Email:      cfg.Email,
		}
		tlsConfig = manager.TLSConfig()
		log.Printf("Configured TLS for domain %s", cfg.DomainName)
	}

	controlPlane := server.NewServer(cfg.ControlPort, registry, admitter, tokens, tlsConfig)
	controlPlane.MaxConnections = cfg.MaxConnections

	serverErrors := make(chan error, 2)

	go func() {
		if err := controlPlane.Start(); err != nil {
			serverErrors <- err
		}
	}()

	// 5. Internal API answering peer sub-domain queries.
	internalAPI := &http.Server{
		Addr:    cfg.InternalAPIPort,
		Handler: cluster.NewRouter(registry),
	}
	go func() {
		log.Printf("Internal API listening on %s", cfg.InternalAPIPort)
		if err := internalAPI.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErrors:
		sentry.CaptureError(err, "server error")
		log.Printf("Server error: %v, initiating shutdown...", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := internalAPI.Shutdown(shutdownCtx); err != nil {
		log.Printf("Internal API shutdown error: %v", err)
	}
	if err := controlPlane.Shutdown(shutdownCtx); err != nil {
		log.Printf("Control plane shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}

func newDirectory(ctx context.Context, cfg *config.Config) (auth.Directory, func(), error) {
	if cfg.DynamoRegion != "" {
		dir, err := authdb.NewDynamoDirectory(ctx, authdb.DynamoConfig{
			Region:   cfg.DynamoRegion,
			Endpoint: cfg.DynamoEndpoint,
			Table:    cfg.DynamoTable,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Using DynamoDB account directory (region %s)", cfg.DynamoRegion)
		return dir, func() {}, nil
	}

	dir, err := authdb.NewSQLiteDirectory(cfg.AuthDBPath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Using SQLite account directory at %s", cfg.AuthDBPath)
	if err := dir.SeedKey(auth.HashKey(devAuthKey), uuid.New()); err != nil {
		log.Printf("Failed to seed dev auth key: %v", err)
	} else {
		log.Printf("Seeded dev auth key. Use key: %s", devAuthKey)
	}
	return dir, func() { _ = dir.Close() }, nil
}

// portOf strips the host part from an addr like ":4446" or "0.0.0.0:4446".
func portOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return addr
}
