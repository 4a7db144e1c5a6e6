// Package httpserver builds the API listener from server configuration.
package httpserver

import (
	"net/http"
	"time"

	"docflow/internal/platform/config"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

// New returns a server for cfg. Unset header and idle timeouts fall back to
// package defaults. Read and write timeouts of zero stay disabled, which
// large attachment uploads may need.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: orDefault(cfg.ReadHeaderTimeout, defaultReadHeaderTimeout),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       orDefault(cfg.IdleTimeout, defaultIdleTimeout),
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
