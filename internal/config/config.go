// Package config loads the server configuration from the environment (with
// .env support) plus an optional YAML file for the list-shaped settings.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSigKey = errors.New("master signing key not configured")
	ErrInvalidSigKey = errors.New("invalid master signing key format")
)

const sigKeyLength = 32

// Config is everything the server consumes from its environment.
type Config struct {
	ControlPort     string
	InternalAPIPort string

	// DomainName enables autocert TLS on the control plane when set.
	DomainName string
	Email      string

	// MasterSigKey signs reconnect tokens. Must be stable across the fleet
	// or tokens issued by one instance won't verify on another.
	MasterSigKey []byte
	TokenMaxAge  time.Duration

	BlockedSubDomains []string
	FleetPeers        []string
	FleetHost         string

	// Account directory backend: DynamoDB when DynamoRegion is set,
	// otherwise a local SQLite file.
	DynamoRegion   string
	DynamoEndpoint string
	DynamoTable    string
	AuthDBPath     string

	SentryDSN      string
	MaxConnections int
}

// fileConfig holds the settings that are awkward as environment variables.
type fileConfig struct {
	BlockedSubDomains []string `yaml:"blocked_sub_domains"`
	FleetPeers        []string `yaml:"fleet_peers"`
}

// Load reads .env (if present), then the environment, then merges the
// optional CONFIG_FILE YAML on top of the list settings.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ControlPort:     getEnv("CTRL_PORT", ":4443"),
		InternalAPIPort: getEnv("INTERNAL_API_PORT", ":4446"),
		DomainName:      os.Getenv("DOMAIN_NAME"),
		Email:           os.Getenv("EMAIL"),
		FleetHost:       os.Getenv("FLEET_HOST"),
		DynamoRegion:    os.Getenv("DYNAMO_REGION"),
		DynamoEndpoint:  os.Getenv("DYNAMO_ENDPOINT"),
		DynamoTable:     os.Getenv("DYNAMO_TABLE"),
		AuthDBPath:      getEnv("AUTH_DB_PATH", "tunnelto-auth.db"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		TokenMaxAge:     12 * time.Hour,
		MaxConnections:  1000,
	}

	cfg.BlockedSubDomains = splitList(os.Getenv("BLOCKED_SUB_DOMAINS"))
	cfg.FleetPeers = splitList(os.Getenv("FLEET_PEERS"))

	if v := os.Getenv("TOKEN_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_MAX_AGE: %w", err)
		}
		cfg.TokenMaxAge = d
	}

	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MAX_CONNECTIONS: %w", err)
		}
		cfg.MaxConnections = n
	}

	key, err := getSigKey(os.Getenv("ALLOW_INSECURE_KEYS") == "true")
	if err != nil {
		return nil, err
	}
	cfg.MasterSigKey = key

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	c.BlockedSubDomains = append(c.BlockedSubDomains, fc.BlockedSubDomains...)
	c.FleetPeers = append(c.FleetPeers, fc.FleetPeers...)
	return nil
}

// getSigKey reads MASTER_SIG_KEY (base64) or, in dev mode, generates a
// random one with a warning: tokens then won't survive a restart.
func getSigKey(allowRandom bool) ([]byte, error) {
	if encoded := os.Getenv("MASTER_SIG_KEY"); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, ErrInvalidSigKey
		}
		if len(key) < sigKeyLength {
			return nil, ErrInvalidSigKey
		}
		return key[:sigKeyLength], nil
	}

	if !allowRandom {
		return nil, ErrMissingSigKey
	}

	key := make([]byte, sigKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	log.Println("WARNING: MASTER_SIG_KEY not configured. Using a random key - reconnect tokens will not survive a restart and will not verify on other instances.")
	return key, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
