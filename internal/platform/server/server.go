// Package server builds the HTTP listener for the API.
package server

import (
	"net"
	"net/http"
	"time"

	"imagine/internal/config"
)

const (
	maxHeaderTimeout = 10 * time.Second
	maxHeaderBytes   = 64 << 10
)

// New returns a server for handler on host:port. Headers must arrive within
// the read timeout, capped at ten seconds, and may not exceed 64KB.
func New(host, port string, handler http.Handler, cfg *config.ServerConfig) *http.Server {
	headerTimeout := min(cfg.ReadTimeout, maxHeaderTimeout)
	if headerTimeout <= 0 {
		headerTimeout = maxHeaderTimeout
	}
	return &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: headerTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
