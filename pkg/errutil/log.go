// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package errutil provides helpers for logging and asserting on coded errors.
package errutil

import (
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// faultStatus maps oops error codes that cross the HTTP boundary to the
// status class they surface with. Anything unlisted is a generic 500: no
// internal detail leaks to clients.
var faultStatus = map[string]int{
	"RULE_NOT_FOUND":    http.StatusInternalServerError,
	"CONFIG_INVALID":    http.StatusInternalServerError,
	"DB_CONNECT_FAILED": http.StatusInternalServerError,
}

// HTTPStatus returns the response status class for a fault. Rejections are
// handled upstream; by the time an error reaches this function it is a
// fault and the default is a 500.
func HTTPStatus(err error) int {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, isString := oopsErr.Code().(string); isString {
			if status, found := faultStatus[code]; found {
				return status
			}
		}
	}
	return http.StatusInternalServerError
}
