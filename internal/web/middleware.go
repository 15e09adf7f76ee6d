// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/pkg/errutil"
)

type contextKey struct{ name string }

var identityKey = &contextKey{"identity"}

// IdentityFrom returns the authenticated identity attached to ctx by the
// auth middleware.
func IdentityFrom(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*auth.Identity)
	return identity, ok
}

// requireAuth wraps a protected handler. It runs the token engine's
// verify-and-refresh routine; on success the identity is attached to the
// request context, on rejection the response carries the rejection's
// status and reason and the wrapped handler never executes.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.tokens.Authenticate(r.Context(), w, r)
		if err != nil {
			if rej, ok := auth.AsRejection(err); ok {
				s.countVerification("rejected")
				respondError(w, rej.Status, rej.Reason)
				return
			}
			s.countVerification("error")
			errutil.LogError(s.logger, "token verification fault", err)
			respondError(w, errutil.HTTPStatus(err), "Internal Server Error")
			return
		}

		s.countVerification("ok")
		if s.tokens.RefreshesOnVerify() {
			s.countRefresh("ok")
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	}
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// instrument wraps the whole router with request logging, request ids, and
// panic recovery. A panic never leaks internals: the client gets a bare 500.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := ulid.Make().String()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rv := recover(); rv != nil {
				s.logger.Error("panic in handler",
					"request_id", requestID,
					"path", r.URL.Path,
					"panic", rv,
				)
				respondError(rec, http.StatusInternalServerError, "Internal Server Error")
			}

			if s.metrics != nil {
				s.metrics.RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
			}
			s.logger.Info("request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(rec, r)
	})
}

func (s *Server) countVerification(result string) {
	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Server) countRefresh(result string) {
	if s.metrics != nil {
		s.metrics.RefreshesTotal.WithLabelValues(result).Inc()
	}
}
