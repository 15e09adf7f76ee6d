// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// dummyPasswordHash is used when a user doesn't exist to keep the login
// path's timing consistent: verification still runs against this hash.
// It is NOT a real credential and will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service coordinates credential operations: registration, login, and
// password changes. Policy checks always run before any state mutation.
type Service struct {
	accounts  AccountRepository
	passwords *PasswordValidator
	usernames *UsernameValidator
	hasher    PasswordHasher
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(accounts AccountRepository, passwords *PasswordValidator, usernames *UsernameValidator, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account repository is required")
	}
	if passwords == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password validator is required")
	}
	if usernames == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("username validator is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		passwords: passwords,
		usernames: usernames,
		hasher:    hasher,
		logger:    logger,
	}, nil
}

// Register validates the candidate credentials, hashes the password, and
// persists the account. Policy rejections come back as *Rejection with
// status 400; anything else is a fault.
func (s *Service) Register(ctx context.Context, username, password string) (*Account, error) {
	outcome, err := s.usernames.Validate(ctx, username)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "validate username").
			Wrap(err)
	}
	if !outcome.Valid {
		return nil, Reject(http.StatusBadRequest, outcome.Reason)
	}

	outcome, err = s.passwords.Validate(ctx, password, DefaultRoleID)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "validate password").
			Wrap(err)
	}
	if !outcome.Valid {
		return nil, Reject(http.StatusBadRequest, outcome.Reason)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := s.accounts.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent registration for the same name.
			return nil, Reject(http.StatusBadRequest, fmt.Sprintf("Username %s is already taken", username))
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert account").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered",
		"subject_id", account.ID,
		"username", account.Username,
	)
	return account, nil
}

// Login resolves the account and verifies the password against its hash.
// Unknown users surface as a 404 rejection, a wrong password as a 401; the
// password is verified against a dummy hash when the user is missing so
// both paths cost the same.
func (s *Service) Login(ctx context.Context, username, password string) (*Account, error) {
	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		exists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by username").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !exists {
		return nil, RejectUserNotFound
	}
	if !valid {
		return nil, Reject(http.StatusUnauthorized, "Invalid password")
	}

	// Transparently upgrade legacy hashes on successful login. Best
	// effort: login succeeds even if the rewrite fails.
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			if updErr := s.accounts.UpdatePassword(ctx, account.ID, newHash); updErr == nil {
				account.PasswordHash = newHash
			}
		}
	}

	s.logger.InfoContext(ctx, "login succeeded", "subject_id", account.ID)
	return account, nil
}

// ChangePassword verifies the current password, validates the new one
// against the caller's role rule, and persists the new hash.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RejectUserNotFound
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(current, account.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		return Reject(http.StatusUnauthorized, "Invalid current password")
	}

	outcome, err := s.passwords.Validate(ctx, next, account.RoleID)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "validate new password").
			Wrap(err)
	}
	if !outcome.Valid {
		return Reject(http.StatusBadRequest, outcome.Reason)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("subject_id", account.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed", "subject_id", account.ID)
	return nil
}
