// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/auth"
)

// PasswordRuleRepository implements auth.PasswordRuleRepository using
// PostgreSQL.
type PasswordRuleRepository struct {
	db DB
}

// NewPasswordRuleRepository creates a new PasswordRuleRepository.
func NewPasswordRuleRepository(db DB) *PasswordRuleRepository {
	return &PasswordRuleRepository{db: db}
}

// GetByRole retrieves the password rule bound to a role. A missing row is
// a deployment fault for callers, surfaced as a wrapped auth.ErrNotFound.
func (r *PasswordRuleRepository) GetByRole(ctx context.Context, roleID int64) (*auth.PasswordRule, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_roles.id, password_rules.min_length, password_rules.min_type,
		       password_rules.require_upper, password_rules.require_number, password_rules.require_special
		FROM password_rules
		JOIN user_roles ON user_roles.password_rule_id = password_rules.id
		WHERE user_roles.id = $1
	`, roleID)

	var rule auth.PasswordRule
	err := row.Scan(
		&rule.RoleID,
		&rule.MinLength,
		&rule.MinDistinctTypes,
		&rule.RequireUpper,
		&rule.RequireNumber,
		&rule.RequireSpecial,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RULE_NOT_FOUND").
			With("role_id", roleID).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RULE_GET_BY_ROLE_FAILED").
			With("operation", "get password rule by role").
			With("role_id", roleID).
			Wrap(err)
	}
	return &rule, nil
}
