// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package web exposes the Keyward auth API over HTTP.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/internal/observability"
)

// Server serves the auth API.
type Server struct {
	addr       string
	svc        *auth.Service
	tokens     *auth.TokenEngine
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server. metrics may be nil when the
// observability listener is disabled.
func NewServer(addr string, svc *auth.Service, tokens *auth.TokenEngine, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		svc:     svc,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Handler builds the API router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("GET /auth/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("PUT /auth/change-password", s.requireAuth(s.handleChangePassword))

	// Everything else is a JSON 404 rather than the stdlib text page.
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not Found")
	})

	return s.instrument(mux)
}

// Start begins serving the API. It returns an error channel that receives
// any serve error after startup; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
