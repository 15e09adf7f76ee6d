// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the JSON error envelope: {"error": "<reason>"}.
type errorBody struct {
	Error string `json:"error"`
}

// messageBody is the JSON success envelope: {"message": "<text>"}.
type messageBody struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, reason string) {
	respondJSON(w, status, errorBody{Error: reason})
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, messageBody{Message: msg})
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
