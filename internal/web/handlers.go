// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package web

import (
	"net/http"

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/pkg/errutil"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// handleRegister creates an account and logs it in by issuing a session
// cookie alongside the 201 response.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	account, err := s.svc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if rej, ok := auth.AsRejection(err); ok {
			s.countRegistration("rejected")
			respondError(w, rej.Status, rej.Reason)
			return
		}
		s.countRegistration("error")
		errutil.LogError(s.logger, "registration fault", err)
		respondError(w, http.StatusInternalServerError, "User registration failed")
		return
	}

	if err := s.tokens.Issue(w, account); err != nil {
		s.countRegistration("error")
		errutil.LogError(s.logger, "token issue fault", err)
		respondError(w, http.StatusInternalServerError, "Failed to generate JWT")
		return
	}

	s.countRegistration("ok")
	respondJSON(w, http.StatusCreated, auth.IdentityOf(account))
}

// handleLogin authenticates credentials and issues a session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	account, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if rej, ok := auth.AsRejection(err); ok {
			s.countLogin("rejected")
			respondError(w, rej.Status, rej.Reason)
			return
		}
		s.countLogin("error")
		errutil.LogError(s.logger, "login fault", err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := s.tokens.Issue(w, account); err != nil {
		s.countLogin("error")
		errutil.LogError(s.logger, "token issue fault", err)
		respondError(w, http.StatusInternalServerError, "Failed to generate JWT")
		return
	}

	s.countLogin("ok")
	respondMessage(w, http.StatusOK, "Login successful")
}

// handleLogout clears the session cookie. Protected: only a valid session
// can log itself out.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.tokens.ClearCookie(w)
	respondMessage(w, http.StatusOK, "Logged out")
}

// handleStatus returns the identity resolved by the auth middleware.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondJSON(w, http.StatusOK, identity)
}

// handleChangePassword verifies the current password and installs a new
// one, re-validated against the caller's role policy.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	err := s.svc.ChangePassword(r.Context(), identity.SubjectID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if rej, ok := auth.AsRejection(err); ok {
			respondError(w, rej.Status, rej.Reason)
			return
		}
		errutil.LogError(s.logger, "change password fault", err)
		respondError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	respondMessage(w, http.StatusOK, "Password changed successfully")
}

func (s *Server) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}
