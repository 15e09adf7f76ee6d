// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"context"
	"time"
)

// DefaultRoleID is the role assigned to accounts created through
// self-registration.
const DefaultRoleID int64 = 1

// Account represents a registered user account.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	RoleID       int64
	CreatedAt    time.Time
}

// Identity is the authenticated view of an account attached to the request
// context by the auth middleware. It never carries the password hash.
type Identity struct {
	SubjectID int64     `json:"user_id"`
	Username  string    `json:"username"`
	RoleID    int64     `json:"user_role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityOf builds the identity view of an account.
func IdentityOf(a *Account) *Identity {
	return &Identity{
		SubjectID: a.ID,
		Username:  a.Username,
		RoleID:    a.RoleID,
		CreatedAt: a.CreatedAt,
	}
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account with the default role and returns it with
	// its assigned id and creation timestamp.
	Create(ctx context.Context, username, passwordHash string) (*Account, error)

	// GetByID retrieves an account by id.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByUsername retrieves an account by exact username. The match is
	// case-sensitive: "Alice" and "alice" are distinct accounts.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// UpdatePassword replaces the password hash for an account.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// PasswordRule is the per-role password policy row.
type PasswordRule struct {
	RoleID           int64
	MinLength        int
	MinDistinctTypes int
	RequireUpper     bool
	RequireNumber    bool
	RequireSpecial   bool
}

// PasswordRuleRepository reads password policy rows.
type PasswordRuleRepository interface {
	// GetByRole retrieves the password rule bound to a role. Returns a
	// wrapped ErrNotFound when no rule row exists for the role, which
	// callers must treat as a deployment fault rather than a rejection.
	GetByRole(ctx context.Context, roleID int64) (*PasswordRule, error)
}
