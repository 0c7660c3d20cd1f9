// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/crumb/internal/logging"
)

const (
	httpServiceName        = "http-server"
	defaultShutdownTimeout = 10 * time.Second
)

// HTTPServer is the part of *http.Server the service drives. Tests swap in
// a fake.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// NewHTTPServer returns the API server. The write deadline sits a few seconds
// past the request timeout so a handler that times out still gets its error
// envelope onto the wire.
func NewHTTPServer(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	const grace = 5 * time.Second
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		MaxHeaderBytes:    64 << 10,
		ReadHeaderTimeout: grace,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + grace,
		IdleTimeout:       2 * time.Minute,
	}
}

// HTTPServerService runs an HTTPServer under suture.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. A non-positive shutdownTimeout means ten
// seconds.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve listens until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout and returns ctx.Err(). A listener that exits on
// its own yields its error, or nil for http.ErrServerClosed.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	listenDone := make(chan error, 1)
	go func() { listenDone <- h.server.ListenAndServe() }()

	if srv, ok := h.server.(*http.Server); ok {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
	}

	select {
	case err := <-listenDone:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// ctx is already done, so the drain gets a context of its own.
	drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	<-listenDone

	logging.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

func (h *HTTPServerService) String() string { return httpServiceName }
