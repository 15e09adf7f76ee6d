// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package auth provides the credential and session-token core of Keyward.
//
// # Domain Types
//
// Account is the persisted user record; PasswordRule is the per-role policy
// row that gates password acceptance. Both are owned by the persistence
// layer and fetched fresh per operation - password rules are never cached
// across validations, so policy changes take effect on the next request.
//
// # Validators
//
// PasswordValidator and UsernameValidator return rejections as values
// (Outcome) rather than errors; the error return is reserved for faults
// such as a missing policy row or an unreachable store.
//
// # Token Engine
//
// TokenEngine mints, verifies, and rolls the signed session token carried
// in the access_token cookie. Every verification failure is classified into
// a Rejection with a fixed status class; a successful verification
// re-resolves the account and, when refresh-on-verify is enabled, replaces
// the cookie with a freshly signed token.
//
// # Services
//
// Service coordinates registration, login, and password changes on top of
// the validators, the hasher, and the repositories.
package auth
