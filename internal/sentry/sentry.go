// Package sentry wraps error reporting for the admission server. Everything
// is a no-op when no DSN is configured, so local development and tests run
// without network side effects.
package sentry

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// ignoredErrors contains error messages that should be logged but not sent
// to Sentry. These come from bots, scanners and normal client disconnects
// and would otherwise drown real failures.
var ignoredErrors = []string{
	"first record does not look like a TLS handshake", // plain TCP against the TLS port
	"tls: unsupported SSLv2 handshake received",       // ancient or bogus handshake
	"acme/autocert: missing server name",              // TLS connections without SNI
	"host not configured",                             // SNI outside the autocert policy
	"connection reset by peer",                        // client dropped mid-handshake
	"broken pipe",                                     // write to an already-gone client
	"use of closed network connection",
	"no client hello",      // connected and never spoke
	"invalid client hello", // garbage first message
	"invalid reconnect token",
	"EOF",
}

// shouldIgnore checks if an error should be filtered out from Sentry.
func shouldIgnore(err error) bool {
	if err == nil {
		return true
	}

	// Socket timeouts are noise: scanners often connect and never speak.
	type timeoutError interface{ Timeout() bool }
	if te, ok := err.(timeoutError); ok && te.Timeout() {
		return true
	}

	errStr := err.Error()
	for _, ignored := range ignoredErrors {
		if strings.Contains(errStr, ignored) {
			return true
		}
	}
	return false
}

// Init configures the global Sentry client. An empty DSN leaves reporting
// disabled.
func Init(dsn string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
	})
}

// Flush drains pending events; call before process exit.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// CaptureError logs an error locally and reports it to Sentry.
func CaptureError(err error, message string) {
	log.Printf("%s: %v", message, err)
	if shouldIgnore(err) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		sentry.CaptureException(err)
	})
}

// CaptureErrorf logs and reports an error with a formatted message.
func CaptureErrorf(err error, format string, args ...interface{}) {
	CaptureError(err, fmt.Sprintf(format, args...))
}
